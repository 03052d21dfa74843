package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(roles ...string) *gin.Engine {
	r := gin.New()
	r.GET("/admin", AuthMiddleware(), RequireRoles(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r
}

func request(r http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := protectedRouter(models.RoleCashier)

	cashier, err := utils.GenerateToken(4, models.RoleCashier)
	require.NoError(t, err)
	chef, err := utils.GenerateToken(5, models.RoleChef)
	require.NoError(t, err)
	admin, err := utils.GenerateToken(1, models.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, request(r, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/admin", "garbage").Code)
	assert.Equal(t, http.StatusForbidden, request(r, "/admin", chef).Code)

	w := request(r, "/admin", cashier)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":4}`, w.Body.String())

	assert.Equal(t, http.StatusOK, request(r, "/admin", admin).Code)
}

func TestWebSocketAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/ws", WebSocketAuthMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRole))
	})

	token, err := utils.GenerateToken(2, models.RoleStaff)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, request(r, "/ws", "").Code)
	w := request(r, "/ws?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleStaff, w.Body.String())
}

func TestStrictRateLimiterIsPerClient(t *testing.T) {
	rl := NewStrictRateLimiter(time.Hour, 2)
	r := gin.New()
	r.POST("/login", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1"))
	assert.Equal(t, http.StatusOK, post("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1"))
	assert.Equal(t, http.StatusOK, post("10.0.0.2"))
}

func TestRateLimit(t *testing.T) {
	_, err := RateLimit("not-a-rate")
	assert.Error(t, err)

	limit, err := RateLimit("2-M")
	require.NoError(t, err)

	r := gin.New()
	r.Use(limit)
	r.GET("/menus", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, request(r, "/menus", "").Code)
	assert.Equal(t, http.StatusOK, request(r, "/menus", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, "/menus", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddlewares("https://resto.example"))
	r.GET("/api/menus", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/menus", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://resto.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Tab-ID")
}
