// Package push delivers Web Push notifications to the dashboard's registered
// browsers using VAPID keys.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/craft-brew/queue-ingest/internal/cache"
)

// ErrSubscriptionGone marks a permanently dead endpoint (HTTP 404/410).
// Callers prune the subscription instead of retrying.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Notification is the payload the service worker renders.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Sender delivers one notification to one subscription, best effort.
type Sender interface {
	Send(ctx context.Context, sub cache.PushSubscription, n Notification) error
}

// WebPushSender implements Sender over the Web Push protocol.
type WebPushSender struct {
	subject    string
	publicKey  string
	privateKey string
}

// NewWebPushSender creates a sender with the given VAPID details.
func NewWebPushSender(subject, publicKey, privateKey string) *WebPushSender {
	return &WebPushSender{
		subject:    subject,
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

// Configured reports whether VAPID keys are present. Without keys the alert
// path logs and skips sending rather than failing.
func (s *WebPushSender) Configured() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// Send delivers one notification. Returns ErrSubscriptionGone when the push
// service reports the endpoint no longer exists.
func (s *WebPushSender) Send(ctx context.Context, sub cache.PushSubscription, n Notification) error {
	if !s.Configured() {
		return errors.New("push sender not configured")
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
	})
	if err != nil {
		return fmt.Errorf("send push notification: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
