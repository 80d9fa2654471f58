package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Webhook POSTs events as JSON to a family-configured URL. Failures are
// logged and dropped.
type Webhook struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewWebhook(url string, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (w *Webhook) Send(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		w.log.WarnContext(ctx, "failed to encode notification", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		w.log.WarnContext(ctx, "failed to build notification request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.WarnContext(ctx, "failed to deliver notification", "kind", string(ev.Kind), "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		w.log.WarnContext(ctx, "notification rejected", "kind", string(ev.Kind), "status", resp.StatusCode)
	}
}
