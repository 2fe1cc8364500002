// Package cron installs the scheduled heartbeat jobs that deliver
// notifications through the Push Registry, independent of the
// Channel Manager's dispatch path. This is the concrete instance of
// the "scheduled heartbeat job installer" named as an external
// collaborator in the core's scope.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/push"
)

// Scheduler evaluates a fixed set of cron-scheduled heartbeat jobs
// and delivers them through a Registry on a tick.
type Scheduler struct {
	jobs     []config.HeartbeatJob
	registry *push.Registry
	logger   *slog.Logger
	expr     gronx.Gronx
	tick     time.Duration
}

// NewScheduler constructs a Scheduler for jobs, delivering through registry.
func NewScheduler(jobs []config.HeartbeatJob, registry *push.Registry, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{jobs: jobs, registry: registry, logger: logger, expr: gronx.New(), tick: time.Minute}
}

// Run evaluates jobs every tick until ctx is cancelled, firing any
// job whose schedule is due.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.fireDue(now)
		}
	}
}

func (s *Scheduler) fireDue(now time.Time) {
	for _, job := range s.jobs {
		due, err := s.expr.IsDue(job.Schedule, now)
		if err != nil {
			s.logger.Warn("cron: invalid heartbeat schedule", "channel", job.Channel, "schedule", job.Schedule, "error", err)
			continue
		}
		if !due {
			continue
		}
		delivered, err := s.registry.Send(job.Channel, job.Text, nil)
		if err != nil {
			s.logger.Error("cron: heartbeat delivery failed", "channel", job.Channel, "error", err)
			continue
		}
		if !delivered {
			s.logger.Warn("cron: heartbeat has no matching push handler", "channel", job.Channel)
		}
	}
}
