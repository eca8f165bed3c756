package api

import (
	"ChatApp/internal/api/middleware"
	"ChatApp/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.CORSMiddleware(group.AllowedOrigins))
	logger.SetupGin(r)

	auth := middleware.AuthMiddleware(group.Verifier)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		userGroup := apiGroup.Group("/user")
		{
			// 无需登录即可访问的接口
			userGroup.POST("/register", group.UserHandler.Register)
			userGroup.POST("/login", group.UserHandler.Login)

			authGroup := userGroup.Group("")
			authGroup.Use(auth)
			{
				authGroup.POST("/logout", group.UserHandler.Logout)
				authGroup.GET("", group.UserHandler.ListUsers)
				authGroup.GET("/info", group.UserHandler.GetSelf)
				authGroup.GET("/search", group.UserHandler.SearchUser)
				authGroup.GET("/:user_id", group.UserHandler.GetUser)
				authGroup.PUT("/profile", group.UserHandler.UpdateProfile)
				authGroup.PUT("/password", group.UserHandler.ChangePassword)
				authGroup.POST("/avatar", group.UserHandler.UploadAvatar)
				authGroup.DELETE("/avatar", group.UserHandler.DeleteAvatar)
			}
		}

		imGroup := apiGroup.Group("/im")
		{
			// 握手鉴权在 handler 内完成，失败时返回真实的 HTTP 状态码
			imGroup.GET("/ws", group.WSHandler.Connect)

			authGroup := imGroup.Group("")
			authGroup.Use(auth)
			{
				authGroup.GET("/conversations", group.IMHandler.GetConversationList)
				authGroup.GET("/rooms/:room_id/messages", group.IMHandler.GetRoomMessages)
				authGroup.GET("/history/:user_id", group.IMHandler.GetChatHistory)
				authGroup.GET("/online", group.IMHandler.GetOnlineUsers)
			}
		}
	}

	return r
}
