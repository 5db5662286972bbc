package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"weatheretl/internal/config"
)

// Trigger calls fire on its own timetable between Start and Stop. The first
// call comes one period after Start; the Scheduler makes the immediate run.
type Trigger interface {
	Start(fire func()) error
	Stop()
}

// GocronTrigger fires on a fixed interval or a standard cron expression.
type GocronTrigger struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	cron      string
}

func NewIntervalTrigger(interval time.Duration) *GocronTrigger {
	return &GocronTrigger{scheduler: gocron.NewScheduler(time.UTC), interval: interval}
}

func NewCronTrigger(expr string) *GocronTrigger {
	return &GocronTrigger{scheduler: gocron.NewScheduler(time.UTC), cron: expr}
}

// NewTrigger picks the cron expression when one is configured, otherwise the
// interval in minutes.
func NewTrigger(cfg config.ETLConfig) *GocronTrigger {
	if cfg.Cron != "" {
		return NewCronTrigger(cfg.Cron)
	}
	return NewIntervalTrigger(cfg.Interval())
}

func (t *GocronTrigger) Start(fire func()) error {
	// a slow run delays the next one instead of overlapping it
	t.scheduler.SingletonModeAll()

	var err error
	if t.cron != "" {
		_, err = t.scheduler.Cron(t.cron).WaitForSchedule().Do(fire)
	} else {
		if t.interval <= 0 {
			return fmt.Errorf("schedule interval must be positive, got %s", t.interval)
		}
		_, err = t.scheduler.Every(t.interval).WaitForSchedule().Do(fire)
	}
	if err != nil {
		return fmt.Errorf("failed to schedule ETL job: %w", err)
	}

	t.scheduler.StartAsync()
	return nil
}

func (t *GocronTrigger) Stop() {
	if t.scheduler.IsRunning() {
		t.scheduler.Stop()
	}
}

func (t *GocronTrigger) String() string {
	if t.cron != "" {
		return "cron " + t.cron
	}
	return "every " + t.interval.String()
}
