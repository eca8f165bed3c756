package logger

import (
	"ChatApp/internal/pkg/consts"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// wsPathSuffix websocket 握手请求的 latency 是整条连接的存活时长
const wsPathSuffix = "/im/ws"

// SetupGin 注册 JSON 访问日志与 panic 恢复
// 日志带 trace_id 与已鉴权的 user_id，websocket 连接结束时记为 WS_SESSION
func SetupGin(r *gin.Engine) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    LogWriter,
		Formatter: formatAccess,
		SkipPaths: []string{"/api/ping"},
	}))

	r.Use(gin.Recovery())
}

func formatAccess(p gin.LogFormatterParams) string {
	var traceID, userID string
	if p.Keys != nil {
		traceID, _ = p.Keys[TraceIDKey].(string)
		userID, _ = p.Keys[consts.CtxUserID].(string)
	}
	if traceID == "" && p.Request != nil {
		traceID = TraceID(p.Request.Context())
	}

	msg := "GIN_ACCESS"
	if strings.HasSuffix(p.Path, wsPathSuffix) {
		msg = "WS_SESSION"
	}

	return fmt.Sprintf(
		`{"time":"%s","level":"INFO","msg":"%s","trace_id":"%s","user_id":"%s","method":"%s","path":"%s","status":%d,"latency":"%v","client_ip":"%s"}`+"\n",
		p.TimeStamp.Format(time.RFC3339),
		msg,
		traceID,
		userID,
		p.Method,
		p.Path,
		p.StatusCode,
		p.Latency,
		p.ClientIP,
	)
}
