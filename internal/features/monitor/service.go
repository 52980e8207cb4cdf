package monitor

import (
	"context"
	"fmt"
	"time"

	"go-estimate/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StalledSweeper is the slice of the instance feature the monitor drives.
type StalledSweeper interface {
	SweepStalled(ctx context.Context) (int, error)
}

type MonitorService interface {
	// StartScheduler registers the periodic sweep and starts the scheduler.
	StartScheduler() error
	StopScheduler() error

	// RunSweep executes one sweep immediately and logs the outcome.
	RunSweep(ctx context.Context, trigger string) (*SweepLog, error)

	RecentSweeps(ctx context.Context, limit int64) ([]SweepLog, error)
}

type MonitorServiceImpl struct {
	Sweeper   StalledSweeper
	Repo      SweepLogRepository
	Config    *config.Config
	Logger    *zap.Logger
	scheduler *cron.Cron
}

func NewMonitorService(sweeper StalledSweeper, repo SweepLogRepository, cfg *config.Config, logger *zap.Logger) MonitorService {
	return &MonitorServiceImpl{
		Sweeper: sweeper,
		Repo:    repo,
		Config:  cfg,
		Logger:  logger,
	}
}

func (s *MonitorServiceImpl) StartScheduler() error {
	s.scheduler = cron.New()

	_, err := s.scheduler.AddFunc(s.Config.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.RunSweep(ctx, "schedule"); err != nil {
			s.Logger.Error("scheduled sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register sweep schedule %q: %w", s.Config.SweepSpec, err)
	}

	s.scheduler.Start()
	s.Logger.Info("stalled-instance sweep scheduled", zap.String("spec", s.Config.SweepSpec))
	return nil
}

func (s *MonitorServiceImpl) StopScheduler() error {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}

func (s *MonitorServiceImpl) RunSweep(ctx context.Context, trigger string) (*SweepLog, error) {
	entry := &SweepLog{
		StartedAt: time.Now(),
		Trigger:   trigger,
	}

	unstalled, err := s.Sweeper.SweepStalled(ctx)
	entry.FinishedAt = time.Now()
	entry.Unstalled = unstalled
	if err != nil {
		entry.Error = err.Error()
	}

	if logErr := s.Repo.Create(ctx, entry); logErr != nil {
		s.Logger.Warn("sweep log write failed", zap.Error(logErr))
	}
	if err != nil {
		return entry, err
	}

	if unstalled > 0 {
		s.Logger.Info("stalled instances resumed", zap.Int("count", unstalled))
	}
	return entry, nil
}

func (s *MonitorServiceImpl) RecentSweeps(ctx context.Context, limit int64) ([]SweepLog, error) {
	return s.Repo.Recent(ctx, limit)
}
