package utils

import (
	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Message string `json:"message"`
}

// JSONResponse is the envelope for every API answer: data on success,
// error on failure. Redirect tells the UI which safe screen to go back to.
type JSONResponse struct {
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Error    *ErrorBody  `json:"error,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Error: &ErrorBody{Message: err.Error()},
	})
}

func RespondErrorRedirect(c *gin.Context, code int, err error, redirect string) {
	c.JSON(code, JSONResponse{
		Error:    &ErrorBody{Message: err.Error()},
		Redirect: redirect,
	})
}

func AbortError(c *gin.Context, code int, err error) {
	RespondError(c, code, err)
	c.Abort()
}
