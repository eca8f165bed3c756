package job

import (
	"ChatApp/internal/pkg/logger"
	"ChatApp/internal/service"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

const reconcileTimeout = 30 * time.Second

// PresenceReconcileJob 将数据库中标记在线但没有存活连接的用户置为离线
type PresenceReconcileJob struct {
	presence service.PresenceService
}

func NewPresenceReconcileJob(presence service.PresenceService) *PresenceReconcileJob {
	return &PresenceReconcileJob{presence: presence}
}

func (s *PresenceReconcileJob) Run() {
	traceID := "job-presence-" + uuid.NewString()
	ctx, cancel := context.WithTimeout(logger.WithTraceID(context.Background(), traceID), reconcileTimeout)
	defer cancel()

	flipped, err := s.presence.Reconcile(ctx)
	if err != nil {
		log.ErrorContext(ctx, "presence reconcile failed", "flipped", flipped, "err", err)
		return
	}
	if flipped > 0 {
		log.InfoContext(ctx, "presence reconcile finished", "flipped", flipped)
	}
}
