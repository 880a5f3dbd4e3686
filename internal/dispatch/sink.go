package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "partywatch/1"

// ErrNoEndpoint is returned for a group without a configured webhook.
var ErrNoEndpoint = errors.New("dispatch: group has no webhook endpoint")

// Sink delivers one message to one endpoint.
type Sink interface {
	Send(ctx context.Context, endpoint string, msg Message) error
}

// StatusError is a non-2xx sink response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("webhook returned HTTP %d: %s", e.Code, e.Body)
}

// WebhookSink POSTs messages as JSON.
type WebhookSink struct {
	client *resty.Client
}

func NewWebhookSink(timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
	return &WebhookSink{client: client}
}

func (s *WebhookSink) Send(ctx context.Context, endpoint string, msg Message) error {
	if endpoint == "" {
		return ErrNoEndpoint
	}

	res, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		Post(endpoint)
	if err != nil {
		// url.Error carries the raw endpoint, which embeds the webhook token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("post %s: %w", RedactURL(endpoint), err)
	}
	if !res.IsSuccess() {
		return &StatusError{Code: res.StatusCode(), Body: truncate(strings.TrimSpace(res.String()), 200)}
	}
	return nil
}

// RedactURL masks credentials in a webhook URL for safe logging. Userinfo,
// query values and the final path segment (the token in Discord-style
// URLs) are replaced.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.User != nil {
		u.User = url.User("REDACTED")
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	if path := strings.TrimSuffix(u.Path, "/"); strings.Count(path, "/") >= 2 {
		u.Path = path[:strings.LastIndex(path, "/")+1] + "REDACTED"
		u.RawPath = ""
	}
	return u.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
