package api

import (
	"ChatApp/internal/api/handler"
	"ChatApp/internal/api/middleware"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	Verifier       middleware.IdentityVerifier
	AllowedOrigins []string
	UserHandler    *handler.UserHandler
	IMHandler      *handler.IMHandler
	WSHandler      *handler.WsHandler
}
