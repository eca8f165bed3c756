package logger

import (
	"context"
	log "log/slog"
	"time"

	"go.mongodb.org/mongo-driver/event"
)

const (
	mongoSlowThreshold = 200 * time.Millisecond
	maxCommandDetail   = 1000
)

// 写命令携带私聊正文，日志里只保留命令名
var mongoWriteCommands = map[string]bool{
	"insert":        true,
	"update":        true,
	"findAndModify": true,
}

// NewMongoMonitor 挂到消息库客户端上
// 读命令在 debug 级别输出截断后的命令体，慢命令告警，失败记 error
func NewMongoMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(ctx context.Context, evt *event.CommandStartedEvent) {
			log.DebugContext(ctx, "MongoDB Started",
				log.String("command", evt.CommandName),
				log.String("database", evt.DatabaseName),
				log.Int64("request_id", evt.RequestID),
				log.String("cmd_detail", commandDetail(evt.CommandName, evt.Command.String())),
			)
		},
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			if evt.Duration > mongoSlowThreshold {
				log.WarnContext(ctx, "MongoDB Slow",
					log.String("command", evt.CommandName),
					log.Duration("latency", evt.Duration),
					log.Int64("request_id", evt.RequestID),
				)
			}
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			log.ErrorContext(ctx, "MongoDB Error",
				log.String("command", evt.CommandName),
				log.Duration("latency", evt.Duration),
				log.Int64("request_id", evt.RequestID),
				log.Any("err", evt.Failure),
			)
		},
	}
}

func commandDetail(name, raw string) string {
	if mongoWriteCommands[name] {
		return "[REDACTED]"
	}
	if len(raw) > maxCommandDetail {
		return raw[:maxCommandDetail] + "...[truncated]"
	}
	return raw
}
