package handler

import (
	"ChatApp/internal/api/config"
	"ChatApp/internal/api/middleware"
	"ChatApp/internal/pkg/logger"
	"ChatApp/internal/pkg/response"
	"ChatApp/internal/pkg/security"
	"ChatApp/internal/service"
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer     = 256
	defaultMaxMessageSize = 8192
)

type WsHandler struct {
	verifier       middleware.IdentityVerifier
	userSvc        service.UserService
	presence       service.PresenceService
	im             service.IMService
	upgrader       websocket.Upgrader
	sendBuffer     int
	maxMessageSize int64
}

func NewWsHandler(
	verifier middleware.IdentityVerifier,
	userSvc service.UserService,
	presence service.PresenceService,
	im service.IMService,
	wsCfg config.WebSocketConfig,
	allowedOrigins []string,
) *WsHandler {
	h := &WsHandler{
		verifier:       verifier,
		userSvc:        userSvc,
		presence:       presence,
		im:             im,
		sendBuffer:     wsCfg.SendBuffer,
		maxMessageSize: wsCfg.MaxMessageSize,
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.maxMessageSize <= 0 {
		h.maxMessageSize = defaultMaxMessageSize
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// 非浏览器客户端不携带 Origin
			return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
		},
	}
	return h
}

// Connect 握手前完成鉴权，未通过时返回真实的 HTTP 状态码且不建立连接
func (h *WsHandler) Connect(c *gin.Context) {
	token, ok := security.ParseBearer(c.GetHeader("Authorization"))
	if !ok {
		response.Reject(c, http.StatusUnauthorized, "missing or malformed token")
		return
	}

	identity, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		log.WarnContext(c, "ws auth failed", "err", err)
		response.Reject(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	if _, err = h.userSvc.GetUser(c.Request.Context(), identity.UserID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.Reject(c, http.StatusNotFound, service.ErrUserNotFound.Error())
			return
		}
		log.ErrorContext(c, "ws identity lookup failed", "user_id", identity.UserID, "err", err)
		response.Reject(c, http.StatusInternalServerError, service.UnExpectedError.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WarnContext(c, "ws upgrade failed", "user_id", identity.UserID, "err", err)
		return
	}

	// 连接的生命周期长于请求，使用独立的 ctx 并保留 trace_id
	ctx := logger.WithTraceID(context.Background(), logger.TraceID(c))
	client := newWsClient(conn, identity.UserID, h.sendBuffer)
	if err = h.presence.Connect(ctx, client); err != nil {
		log.ErrorContext(ctx, "ws register failed", "user_id", identity.UserID, "err", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "presence unavailable"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	log.InfoContext(ctx, "ws connected", "user_id", identity.UserID)
	go client.writePump()
	client.readPump(ctx, h)
	log.InfoContext(ctx, "ws disconnected", "user_id", identity.UserID)
}
