package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dmfeed/pkg/logger"

	"github.com/valyala/fasthttp"
)

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n Notification) error {
	logger.Info("notification", "title", n.Title, "body", n.Body, "data", n.Data)
	return nil
}

// WebhookSender POSTs each notification as JSON to a push gateway.
type WebhookSender struct {
	URL     string
	Timeout time.Duration
	client  *fasthttp.Client
}

func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{
		URL:     url,
		Timeout: timeout,
		client: &fasthttp.Client{
			Name:         "dmfeed-notify",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

func (w *WebhookSender) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	timeout := w.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(w.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := w.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("post %s: %w", w.URL, err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("push gateway returned %d: %s", code, resp.Body())
	}
	return nil
}
