package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "ok", Data: data})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, Response{Code: code, Message: msg})
}

// FailWith is Fail with a payload, used when the caller needs the failed result too.
func FailWith(c *gin.Context, httpStatus int, code int, msg string, data any) {
	c.JSON(httpStatus, Response{Code: code, Message: msg, Data: data})
}
