package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gridwatch/sentinel/internal/config"
)

// Webhook posts pipeline events to an external HTTP endpoint. A rate
// limiter caps outbound traffic so a noisy detection cycle cannot flood
// the receiver.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhook creates a webhook notifier from config. Returns nil when no
// URL is configured.
func NewWebhook(cfg config.NotifyConfig) *Webhook {
	if cfg.WebhookURL == "" {
		return nil
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return &Webhook{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Send posts a single event.
func (w *Webhook) Send(ctx context.Context, e Event) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "notify: rate limiter wait")
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Run drains the event channel, posting each event until the channel
// closes or the context ends. Delivery failures are logged and skipped.
func (w *Webhook) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.Send(ctx, e); err != nil {
				zap.L().Error("notify: failed to deliver event",
					zap.String("event_id", e.ID),
					zap.String("type", string(e.Type)),
					zap.Error(err),
				)
				continue
			}
			zap.L().Debug("notify: event delivered",
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
			)
		}
	}
}
