package wire

import (
	"ChatApp/internal/api"
	"ChatApp/internal/api/config"
	"ChatApp/internal/api/handler"
	"ChatApp/internal/job"
	"ChatApp/internal/pkg/cron"
	"ChatApp/internal/pkg/kafka"
	"ChatApp/internal/pkg/minio"
	"ChatApp/internal/pkg/mongo"
	"ChatApp/internal/pkg/security"
	"ChatApp/internal/repository"
	"ChatApp/internal/service"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router    *gin.Engine
	DB        *gorm.DB
	Presence  service.PresenceService
	CronMgr   *cron.Manager
	Publisher kafka.EventPublisher
}

// Infrastructure 由 main 建立的外部连接
type Infrastructure struct {
	DB          *gorm.DB
	Messages    mongo.MessageRepo
	Revocations security.RevocationStore
	Storage     minio.ObjectStorage
	Publisher   kafka.EventPublisher
}

func BuildApplication(infra *Infrastructure, cfg *config.Config) *ApplicationContainer {
	userRepo := repository.NewUserRepo(infra.DB)
	roomRepo := repository.NewChatRoomRepo(infra.DB)

	verifier := security.NewVerifier(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		time.Duration(cfg.JWT.ExpirationHours)*time.Hour,
		infra.Revocations,
	)

	presenceService := service.NewPresenceService(userRepo)
	roomService := service.NewRoomService(roomRepo)
	userService := service.NewUserService(userRepo, verifier, infra.Storage)
	imService := service.NewIMService(userRepo, roomService, infra.Messages, presenceService, infra.Publisher)
	conversationService := service.NewConversationService(userRepo, roomRepo, infra.Messages)

	handlers := &api.HandlersGroup{
		Verifier:       verifier,
		AllowedOrigins: cfg.Cors.AllowedOrigins,
		UserHandler:    handler.NewUserHandler(userService),
		IMHandler:      handler.NewIMHandler(imService, conversationService, presenceService),
		WSHandler:      handler.NewWsHandler(verifier, userService, presenceService, imService, cfg.WebSocket, cfg.Cors.AllowedOrigins),
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := api.SetupRouter(handlers)

	cronMgr := cron.NewCronManager(cfg.Presence.ReconcileSpec, job.NewPresenceReconcileJob(presenceService))

	return &ApplicationContainer{
		Router:    router,
		DB:        infra.DB,
		Presence:  presenceService,
		CronMgr:   cronMgr,
		Publisher: infra.Publisher,
	}
}
