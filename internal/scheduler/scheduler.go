package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
)

// SettlementRunner is the engine surface the scheduler drives.
type SettlementRunner interface {
	RunSettlement(ctx context.Context, periodStart, periodEnd time.Time) (*models.RunReport, error)
}

// Config carries the cron expressions for both scheduled runs.
type Config struct {
	// WeeklySchedule fires the main weekly settlement run.
	// Default: Friday 02:00.
	WeeklySchedule string
	// SafetyNetSchedule fires the catch-up sweep for bookings the weekly
	// run missed. Default: Monday 09:00.
	SafetyNetSchedule string
	// JobTimeout bounds a single scheduled run.
	JobTimeout time.Duration
}

const (
	DefaultWeeklySchedule    = "0 2 * * 5"
	DefaultSafetyNetSchedule = "0 9 * * 1"
	defaultJobTimeout        = 30 * time.Minute
)

func (c Config) weeklySchedule() string {
	if c.WeeklySchedule == "" {
		return DefaultWeeklySchedule
	}
	return c.WeeklySchedule
}

func (c Config) safetyNetSchedule() string {
	if c.SafetyNetSchedule == "" {
		return DefaultSafetyNetSchedule
	}
	return c.SafetyNetSchedule
}

func (c Config) jobTimeout() time.Duration {
	if c.JobTimeout <= 0 {
		return defaultJobTimeout
	}
	return c.JobTimeout
}

// Scheduler owns the cron process for settlement runs. Each firing derives
// its own period from the wall clock, runs settlement, and forwards the
// report to the notifier.
type Scheduler struct {
	cron     *cron.Cron
	runner   SettlementRunner
	notifier ports.Notifier
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler. notifier may be nil to run silently.
func NewScheduler(runner SettlementRunner, notifier ports.Notifier, cfg Config, logger *zap.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		runner:   runner,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers both jobs and starts the cron loop. An invalid cron
// expression is a deployment mistake and fails startup.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.weeklySchedule(), s.RunWeekly); err != nil {
		return err
	}
	s.logger.Info("scheduled weekly settlement job", zap.String("schedule", s.cfg.weeklySchedule()))

	if _, err := s.cron.AddFunc(s.cfg.safetyNetSchedule(), s.RunSafetyNet); err != nil {
		return err
	}
	s.logger.Info("scheduled safety-net settlement job", zap.String("schedule", s.cfg.safetyNetSchedule()))

	s.cron.Start()
	return nil
}

// Stop stops the cron loop; the returned context is done once in-flight jobs
// finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunWeekly is the main scheduled settlement over the previous seven days.
func (s *Scheduler) RunWeekly() {
	start, end := WeeklyPeriod(s.now())
	s.runJob("weekly-settlement", start, end)
}

// RunSafetyNet sweeps a wider window for anything the weekly run missed.
// Already settled bookings are skipped by the engine's idempotency check.
func (s *Scheduler) RunSafetyNet() {
	start, end := SafetyNetPeriod(s.now())
	s.runJob("safety-net-settlement", start, end)
}

func (s *Scheduler) runJob(job string, periodStart, periodEnd time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.jobTimeout())
	defer cancel()

	s.logger.Info("scheduled settlement job firing",
		zap.String("job", job),
		zap.Time("period_start", periodStart),
		zap.Time("period_end", periodEnd))

	report, err := s.runner.RunSettlement(ctx, periodStart, periodEnd)
	if err != nil {
		s.logger.Error("scheduled settlement job failed",
			zap.String("job", job),
			zap.Error(err))
		s.notifyFailure(ctx, job, err)
		return
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyReport(ctx, report); err != nil {
			s.logger.Warn("failed to deliver run report",
				zap.String("job", job),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) notifyFailure(ctx context.Context, job string, runErr error) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyFailure(ctx, job, runErr); err != nil {
		s.logger.Warn("failed to deliver failure alert",
			zap.String("job", job),
			zap.Error(err))
	}
}
