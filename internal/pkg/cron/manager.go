package cron

import (
	"ChatApp/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine        *cron.Cron
	reconcileSpec string
	reconcileJob  *job.PresenceReconcileJob
}

// NewCronManager spec 使用带秒的六段式表达式
func NewCronManager(reconcileSpec string, reconcileJob *job.PresenceReconcileJob) *Manager {
	return &Manager{
		engine:        cron.New(cron.WithSeconds()),
		reconcileSpec: reconcileSpec,
		reconcileJob:  reconcileJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.reconcileSpec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.reconcileJob)); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron engine started", "jobs", len(s.engine.Entries()))
	s.engine.Start()
}

// Stop 等待正在执行的任务结束
func (s *Manager) Stop() {
	log.Info("Cron engine stopping")
	<-s.engine.Stop().Done()
}
