package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type SchedulerConfig struct {
	BotInterval     time.Duration
	CleanupInterval time.Duration
	SessionMaxIdle  time.Duration
}

// Scheduler runs the background jobs: lobby bot generation and the stale
// battle sweeper.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *zap.Logger
}

func NewScheduler(cfg SchedulerConfig, clock clockwork.Clock, lobby *Lobby, engine *Engine, logger *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.BotInterval),
		gocron.NewTask(func() {
			ch, added, err := lobby.GenerateBotChallenge(context.Background())
			if err != nil {
				logger.Warn("[Scheduler] bot generation failed", zap.Error(err))
				return
			}
			if added {
				logger.Debug("[Scheduler] bot challenge added", zap.String("challenge_id", ch.ID))
			}
		}),
		gocron.WithName("lobby-bots"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule bot job: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.CleanupInterval),
		gocron.NewTask(func() {
			engine.CleanupStaleSessions(context.Background(), cfg.SessionMaxIdle)
		}),
		gocron.WithName("stale-battles"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cleanup job: %w", err)
	}

	return &Scheduler{sched: sched, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info("[Scheduler] started", zap.Int("jobs", len(s.sched.Jobs())))
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
