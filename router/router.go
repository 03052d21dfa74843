package router

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/controllers"
	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/middlewares"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/services"
)

// Services is everything the HTTP layer talks to. Midtrans and Watcher are
// nil unless the Midtrans QRIS gateway is configured.
type Services struct {
	Tables        *services.TableService
	Menu          *services.MenuService
	Carts         *cart.Store
	Orders        *services.OrderService
	Payments      *services.PaymentService
	Verifier      *services.PaymentVerifier
	Reconciler    *services.TransferReconciler
	Proofs        *services.ProofService
	Notifications *services.NotificationService
	Cash          *services.CashReconciliationService
	Receipts      *services.ReceiptService
	Auth          *services.AuthService
	Hub           *hub.Hub
	Midtrans      *services.MidtransService
	Watcher       *services.MidtransWatcher
}

type Options struct {
	AllowedOrigin string
	RateLimit     string
	UploadDir     string
}

var proofExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

func SetupRouter(s Services, opts Options) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(opts.AllowedOrigin))

	if opts.RateLimit != "" {
		limit, err := middlewares.RateLimit(opts.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(limit)
	}

	if opts.UploadDir != "" {
		uploads := r.Group("/uploads")
		uploads.Use(imagesOnly)
		uploads.Static("/", filepath.Clean(opts.UploadDir))
	}

	tableCtrl := controllers.NewTableController(s.Tables)
	menuCtrl := controllers.NewMenuController(s.Menu)
	cartCtrl := controllers.NewCartController(s.Carts)
	orderCtrl := controllers.NewOrderController(s.Orders)
	paymentCtrl := controllers.NewPaymentController(s.Payments, s.Verifier, s.Reconciler)
	uploadCtrl := controllers.NewUploadController(s.Proofs)
	receiptCtrl := controllers.NewReceiptController(s.Receipts)
	notifCtrl := controllers.NewNotificationController(s.Notifications)
	cashCtrl := controllers.NewCashReconciliationController(s.Cash)
	userCtrl := controllers.NewUserController(s.Auth)
	wsCtrl := controllers.NewWSController(s.Hub, opts.AllowedOrigin)

	loginLimit := middlewares.NewStrictRateLimiter(12*time.Second, 5)
	uploadLimit := middlewares.NewStrictRateLimiter(6*time.Second, 10)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/login", loginLimit.Handler(), userCtrl.Login)

	// Customer
	api := r.Group("/api")
	{
		api.GET("/tables/:table_id/scan", tableCtrl.ScanTable)
		api.GET("/tables/:table_id/orders", orderCtrl.GetTableOrders)
		api.GET("/tables/:table_id/ws", wsCtrl.TableSocket)

		api.GET("/menus", menuCtrl.GetMenus)
		api.GET("/menus/:menu_id", menuCtrl.GetMenuByID)

		api.GET("/tables/:table_id/cart", cartCtrl.GetCart)
		api.POST("/tables/:table_id/cart/items", cartCtrl.AddItem)
		api.PATCH("/tables/:table_id/cart/items/:line_id", cartCtrl.UpdateItem)
		api.DELETE("/tables/:table_id/cart/items/:line_id", cartCtrl.RemoveItem)
		api.DELETE("/tables/:table_id/cart", cartCtrl.ClearCart)

		api.POST("/tables/:table_id/checkout", orderCtrl.Checkout)
		api.GET("/order", orderCtrl.GetOrder)
		api.GET("/orders/:order_id/payment-status", orderCtrl.GetPaymentStatus)
	}

	payments := api.Group("")
	payments.Use(middlewares.PaymentSecurityHeaders(), middlewares.LogPaymentRequest())
	{
		payments.POST("/payments", paymentCtrl.InitiatePayment)
		payments.GET("/payments", paymentCtrl.GetPayment)
		payments.GET("/payments/:payment_id/receipt.pdf", receiptCtrl.DownloadReceipt)
		payments.POST("/upload/proof", uploadLimit.Handler(), uploadCtrl.UploadProof)

		if s.Midtrans != nil && s.Watcher != nil {
			midtransCtrl := controllers.NewMidtransController(s.Midtrans, s.Watcher)
			payments.POST("/payments/midtrans/callback", midtransCtrl.HandleCallback)
		}
	}

	// Staff
	r.GET("/admin/ws", middlewares.WebSocketAuthMiddleware(), wsCtrl.StaffSocket)

	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware())
	{
		admin.POST("/users", middlewares.RequireRoles(models.RoleAdmin), userCtrl.Register)
		admin.GET("/tables", tableCtrl.GetTables)
		admin.POST("/tables/:table_id/finish", middlewares.RequireRoles(models.RoleStaff, models.RoleCashier), tableCtrl.FinishSession)

		admin.PATCH("/orders/:order_id/status", middlewares.RequireRoles(models.RoleStaff, models.RoleChef, models.RoleCashier), orderCtrl.UpdateOrderStatus)

		admin.GET("/notifications", notifCtrl.GetAllNotifications)
		admin.PATCH("/notifications/:notif_id/read", notifCtrl.MarkAsRead)
		admin.DELETE("/notifications/:notif_id", notifCtrl.DeleteNotification)
	}

	cashier := admin.Group("")
	cashier.Use(middlewares.RequireRoles(models.RoleCashier), middlewares.PaymentSecurityHeaders(), middlewares.LogPaymentRequest())
	{
		cashier.GET("/payments", paymentCtrl.GetPayments)
		cashier.POST("/payments/:payment_id/verify", paymentCtrl.VerifyPayment)
		cashier.POST("/payments/:payment_id/reject", paymentCtrl.RejectPayment)
		cashier.POST("/payments/reconcile-transfer", paymentCtrl.ReconcileTransfer)

		cashier.GET("/cash-reconciliations", cashCtrl.GetReconciliations)
		cashier.POST("/cash-reconciliations", cashCtrl.CreateReconciliation)
		cashier.GET("/cash-reconciliations/:id", cashCtrl.GetReconciliation)
	}

	return r, nil
}

// imagesOnly keeps /uploads from serving anything but proof images.
func imagesOnly(c *gin.Context) {
	path := strings.ToLower(c.Request.URL.Path)
	for _, ext := range proofExtensions {
		if strings.HasSuffix(path, ext) {
			c.Next()
			return
		}
	}
	c.AbortWithStatus(http.StatusForbidden)
}
