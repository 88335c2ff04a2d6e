// Package notify renders and delivers push notifications for order status
// changes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"burger-house/internal/domain"
)

// ErrSubscriptionGone marks an endpoint the push service no longer knows.
// The dispatcher deletes the subscription on this error.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Transport delivers one rendered message to one endpoint.
type Transport interface {
	Send(ctx context.Context, endpoint string, msg domain.PushMessage) error
}

// HTTPTransport POSTs the message as JSON to the subscription endpoint.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Send(ctx context.Context, endpoint string, msg domain.PushMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
