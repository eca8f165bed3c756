package logger

import (
	"io"
	log "log/slog"
	"os"
	"strings"
)

// LogWriter gin 访问日志与 slog 共用的输出
var LogWriter io.Writer = os.Stdout

// InitLogger 初始化全局 JSON 日志，level 取值 debug/info/warn/error
func InitLogger(level string) {
	opts := &log.HandlerOptions{Level: parseLevel(level)}
	handler := log.NewJSONHandler(LogWriter, opts)

	logger := log.New(&ContextHandler{handler})
	log.SetDefault(logger)
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
