// Package scheduler holds the periodic jobs of the ingestion service: the
// per-minute phase-end alert check and the nightly daily-rollup generation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/craft-brew/queue-ingest/internal/cache"
	"github.com/craft-brew/queue-ingest/internal/push"
)

const (
	alertDedupTTL = time.Hour
	alertURL      = "/fridge"

	minuteLayout = "2006-01-02 15:04"
)

// Alerts fires push notifications when the active batch crosses the end of a
// fermentation or aging phase. The check runs once a minute; the dedup claim
// in the cache guarantees at most one notification per batch and phase even
// with multiple service instances running.
type Alerts struct {
	cache  cache.Store
	sender push.Sender
	tz     *time.Location
}

// NewAlerts creates the alert checker. All timestamps are compared at minute
// granularity in tz.
func NewAlerts(store cache.Store, sender push.Sender, tz *time.Location) *Alerts {
	return &Alerts{cache: store, sender: sender, tz: tz}
}

// Check runs one alert pass for the given instant.
func (a *Alerts) Check(ctx context.Context, now time.Time) error {
	batch, err := a.cache.GetActiveBatch(ctx)
	if err != nil {
		return fmt.Errorf("load active batch: %w", err)
	}
	if batch == nil {
		return nil
	}

	nowMinute := now.In(a.tz).Format(minuteLayout)

	type phaseAlert struct {
		phase string
		title string
		body  string
	}
	var due []phaseAlert
	if batch.FermentationEnd != nil && batch.FermentationEnd.In(a.tz).Format(minuteLayout) == nowMinute {
		due = append(due, phaseAlert{
			phase: "fermentation",
			title: "Fermentation complete!",
			body:  fmt.Sprintf("%s has finished fermenting.", batch.Name),
		})
	}
	if batch.AgingEnd != nil && batch.AgingEnd.In(a.tz).Format(minuteLayout) == nowMinute {
		due = append(due, phaseAlert{
			phase: "aging",
			title: "Aging complete!",
			body:  fmt.Sprintf("%s has finished aging.", batch.Name),
		})
	}

	for _, alert := range due {
		key := fmt.Sprintf("fridge:alert:%d:%s:%s", batch.ID, alert.phase, nowMinute)
		won, err := a.cache.ClaimAlert(ctx, key, alertDedupTTL)
		if err != nil {
			return fmt.Errorf("claim alert %q: %w", key, err)
		}
		if !won {
			slog.Info("[Alerts] Alert already claimed, skipping", "key", key)
			continue
		}
		slog.Info("[Alerts] Phase ended, notifying subscribers",
			"batch_id", batch.ID, "phase", alert.phase)
		if err := a.notify(ctx, alert.title, alert.body); err != nil {
			return err
		}
	}
	return nil
}

// notify fans the notification out to every registered subscription.
// Delivery failures are logged per subscriber; dead endpoints are pruned.
func (a *Alerts) notify(ctx context.Context, title, body string) error {
	subs, err := a.cache.GetPushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		slog.Info("[Alerts] No push subscriptions registered")
		return nil
	}

	n := push.Notification{Title: title, Body: body, URL: alertURL}
	g, ctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			err := a.sender.Send(ctx, sub, n)
			if errors.Is(err, push.ErrSubscriptionGone) {
				slog.Info("[Alerts] Removing dead push subscription", "endpoint", sub.Endpoint)
				if rmErr := a.cache.RemovePushSubscription(ctx, sub.Endpoint); rmErr != nil {
					slog.Error("[Alerts] Failed to remove push subscription",
						"endpoint", sub.Endpoint, "error", rmErr)
				}
				return nil
			}
			if err != nil {
				slog.Error("[Alerts] Push delivery failed", "endpoint", sub.Endpoint, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
