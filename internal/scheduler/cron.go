package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	alertSchedule      = "* * * * *"
	dailyStatsSchedule = "5 0 * * *"
)

// Runner owns the cron process: the per-minute alert check and the nightly
// rollup of the previous day shortly after midnight.
type Runner struct {
	cron   *cron.Cron
	alerts *Alerts
	tz     *time.Location
}

// NewRunner registers both jobs on a cron instance pinned to tz. Jobs run
// with a background context; cancellation happens through Stop.
func NewRunner(alerts *Alerts, daily *DailyStats, tz *time.Location) (*Runner, error) {
	c := cron.New(cron.WithLocation(tz))

	if _, err := c.AddFunc(alertSchedule, func() {
		if err := alerts.Check(context.Background(), time.Now()); err != nil {
			slog.Error("[Scheduler] Alert check failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("register alert job: %w", err)
	}

	if _, err := c.AddFunc(dailyStatsSchedule, func() {
		yesterday := time.Now().In(tz).AddDate(0, 0, -1)
		if err := daily.GenerateRollup(context.Background(), yesterday); err != nil {
			slog.Error("[Scheduler] Daily rollup failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("register daily stats job: %w", err)
	}

	return &Runner{cron: c, alerts: alerts, tz: tz}, nil
}

// Start runs one immediate alert check, then launches the cron loop. The
// immediate pass covers a phase end landing in the boot minute, which the
// first cron tick would otherwise miss.
func (r *Runner) Start() {
	go func() {
		if err := r.alerts.Check(context.Background(), time.Now()); err != nil {
			slog.Error("[Scheduler] Startup alert check failed", "error", err)
		}
	}()
	r.cron.Start()
	slog.Info("[Scheduler] Cron started", "timezone", r.tz.String())
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	slog.Info("[Scheduler] Cron stopped")
}
