// Package reauth calls the primary authentication service to re-check a
// user's password before sensitive two-factor transitions.
package reauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gatekeyhq/gatekey/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the re-authentication client.
type Config struct {
	// URL is the password verification endpoint of the auth service.
	URL string
	// Token authenticates this service to the auth service.
	Token string
	// Timeout bounds a verification call; defaults to 5s.
	Timeout time.Duration
}

// Client is an HTTP client for the auth service's password re-check.
type Client struct {
	cfg    Config
	client *http.Client
	ins    instrument.Instrumentation
}

func NewClient(cfg Config, ins instrument.Instrumentation) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		ins:    ins,
	}
}

type verifyRequest struct {
	UserID   int64  `json:"user_id,string"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// VerifyPassword reports whether password matches the user's primary
// credential. A mismatch is a normal false answer; only transport or
// auth-service failures surface as errors.
func (c *Client) VerifyPassword(ctx context.Context, userID int64, password string) (_ bool, err error) {
	ctx, span := c.ins.Tracer("twofactor.outbound.reauth").Start(ctx, "VerifyPassword")
	defer func() { c.endSpan(span, err) }()

	body, err := json.Marshal(verifyRequest{UserID: userID, Password: password})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var vr verifyResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<10)).Decode(&vr); err != nil {
			return false, err
		}
		return vr.Valid, nil

	case http.StatusUnauthorized:
		return false, nil

	default:
		return false, fmt.Errorf("auth service status %d", resp.StatusCode)
	}
}

func (c *Client) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
