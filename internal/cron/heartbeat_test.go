package cron

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/push"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_FireDue_DeliversMatchingJobAtExactMinute(t *testing.T) {
	registry := push.NewRegistry()
	var delivered []string
	registry.Register("ops-", func(channel, text string, media *bus.MediaAttachment) error {
		delivered = append(delivered, channel)
		return nil
	})

	jobs := []config.HeartbeatJob{
		{Channel: "ops-room", Schedule: "0 9 * * *", Text: "good morning"},
	}
	s := &Scheduler{jobs: jobs, registry: registry, logger: discardLogger(), expr: gronx.New(), tick: time.Minute}

	s.fireDue(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	if len(delivered) != 1 || delivered[0] != "ops-room" {
		t.Errorf("delivered = %v, want [ops-room]", delivered)
	}
}

func TestScheduler_FireDue_SkipsWhenNotDue(t *testing.T) {
	registry := push.NewRegistry()
	var delivered int
	registry.Register("ops-", func(channel, text string, media *bus.MediaAttachment) error {
		delivered++
		return nil
	})

	jobs := []config.HeartbeatJob{
		{Channel: "ops-room", Schedule: "0 9 * * *", Text: "good morning"},
	}
	s := &Scheduler{jobs: jobs, registry: registry, logger: discardLogger(), expr: gronx.New(), tick: time.Minute}

	s.fireDue(time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC))

	if delivered != 0 {
		t.Errorf("expected no delivery for an off-schedule tick, got %d", delivered)
	}
}

func TestScheduler_FireDue_InvalidScheduleDoesNotPanicOrDeliver(t *testing.T) {
	registry := push.NewRegistry()
	var delivered int
	registry.Register("ops-", func(channel, text string, media *bus.MediaAttachment) error {
		delivered++
		return nil
	})

	jobs := []config.HeartbeatJob{
		{Channel: "ops-room", Schedule: "not a cron expression", Text: "broken"},
	}
	s := &Scheduler{jobs: jobs, registry: registry, logger: discardLogger(), expr: gronx.New(), tick: time.Minute}

	s.fireDue(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	if delivered != 0 {
		t.Errorf("expected no delivery for an invalid schedule, got %d", delivered)
	}
}

func TestScheduler_FireDue_NoMatchingPushHandlerLogsWithoutError(t *testing.T) {
	registry := push.NewRegistry() // nothing registered

	jobs := []config.HeartbeatJob{
		{Channel: "ops-room", Schedule: "0 9 * * *", Text: "good morning"},
	}
	s := &Scheduler{jobs: jobs, registry: registry, logger: discardLogger(), expr: gronx.New(), tick: time.Minute}

	// Must not panic even though no handler is registered for the prefix.
	s.fireDue(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
}
