package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrGatewayURLRequired is returned when the gateway base URL is missing.
	ErrGatewayURLRequired = errors.New("sms gateway url is required")
	// ErrNoRecipient is returned when Message.To is empty.
	ErrNoRecipient = errors.New("no recipient provided")
)

// GatewayConfig configures the HTTP gateway client.
type GatewayConfig struct {
	// URL is the gateway send endpoint.
	URL string
	// APIKey authenticates requests when set.
	APIKey string
	// SenderID is the alphanumeric sender shown to recipients.
	SenderID string
	// Timeout bounds a single delivery attempt; defaults to 10s.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt on
	// transient failures; defaults to 2.
	MaxRetries uint64
}

// Gateway delivers SMS messages through an HTTP form-POST provider API.
//
// Transient failures (network errors, 5xx responses) are retried with a
// capped fibonacci backoff; 4xx responses fail immediately.
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
}

// NewGateway validates cfg and returns a gateway client.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.URL == "" {
		return nil, ErrGatewayURLRequired
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Send dispatches the given message, retrying transient provider failures.
func (g *Gateway) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxRetries(g.cfg.MaxRetries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		return g.send(ctx, msg)
	})
}

func (g *Gateway) send(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("senderid", g.cfg.SenderID)
	form.Set("mobile", msg.To)
	form.Set("msg", msg.Body)
	form.Set("msgType", "text")
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if g.cfg.APIKey != "" {
		req.Header.Set("apikey", g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return retry.RetryableError(fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, body))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, body)
	}

	return nil
}

// Close implements io.Closer; the underlying client needs no teardown.
func (g *Gateway) Close() error {
	g.client.CloseIdleConnections()

	return nil
}
