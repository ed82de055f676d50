package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/novunt/client-core/x/bonus"
)

const (
	endpointBonusStatus = "registration-bonus/status"
	endpointDayStart    = "platform/day-start"
	endpointWithdraw    = "wallets/withdraw"

	maxErrorBody = 4096
)

// DefaultTimeout bounds every backend request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// Client talks to the Novunt backend REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
	metrics    *Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithNow overrides the clock used to stamp fetched snapshots.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient constructs a backend client for the given base URL.
func NewClient(rawURL string, httpClient *http.Client, log zerolog.Logger, opts ...Option) (*Client, error) {
	if rawURL == "" {
		return nil, errors.New("base URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend base URL scheme %q", parsed.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	logger := log.With().Str("component", "backend-client").Logger()

	c := &Client{
		baseURL:    parsed,
		httpClient: httpClient,
		log:        logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Info().
		Str("base_url", rawURL).
		Dur("timeout", httpClient.Timeout).
		Msg("backend client initialized")

	return c, nil
}

// FetchBonusStatus returns the caller's registration-bonus progress.
func (c *Client) FetchBonusStatus(ctx context.Context, token string) (bonus.Snapshot, error) {
	if token == "" {
		return bonus.Snapshot{}, ErrMissingToken
	}

	var status bonusStatus
	if err := c.do(ctx, http.MethodGet, endpointBonusStatus, token, nil, nil, &status); err != nil {
		return bonus.Snapshot{}, err
	}

	snap := status.snapshot(c.now())
	c.log.Debug().
		Str("period_id", snap.PeriodID).
		Int("completed", len(snap.Completed)).
		Bool("all_requirements_met", status.AllRequirementsMet).
		Msg("fetched bonus status")
	return snap, nil
}

// BonusFetcher binds FetchBonusStatus to one user's token.
func (c *Client) BonusFetcher(token string) bonus.Fetcher {
	return bonus.FetcherFunc(func(ctx context.Context) (bonus.Snapshot, error) {
		return c.FetchBonusStatus(ctx, token)
	})
}

// FetchDayStart returns the platform day-start schedule. It is not user scoped.
func (c *Client) FetchDayStart(ctx context.Context) (DayStart, error) {
	var ds DayStart
	if err := c.do(ctx, http.MethodGet, endpointDayStart, "", nil, nil, &ds); err != nil {
		return DayStart{}, err
	}
	return ds, nil
}

// SubmitWithdrawal requests a withdrawal. idempotencyKey is generated when empty and
// lets the backend collapse retried submissions.
func (c *Client) SubmitWithdrawal(ctx context.Context, token, idempotencyKey string, req WithdrawalRequest) (WithdrawalReceipt, error) {
	if token == "" {
		return WithdrawalReceipt{}, ErrMissingToken
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	c.log.Info().
		Str("asset", req.Asset).
		Str("network", req.Network).
		Str("amount", req.Amount.String()).
		Str("idempotency_key", idempotencyKey).
		Msg("submitting withdrawal")

	headers := http.Header{}
	headers.Set("Idempotency-Key", idempotencyKey)

	var receipt WithdrawalReceipt
	if err := c.do(ctx, http.MethodPost, endpointWithdraw, token, headers, req, &receipt); err != nil {
		return WithdrawalReceipt{}, err
	}

	c.log.Info().Str("withdrawal_id", receipt.ID).Str("status", receipt.Status).Msg("withdrawal accepted")
	return receipt, nil
}

// do performs a request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, endpoint, token string, headers http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(endpoint), reader)
	if err != nil {
		return fmt.Errorf("prepare %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.record(endpoint, 0, time.Since(start))
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("backend request failed")
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer res.Body.Close()
	c.metrics.record(endpoint, res.StatusCode, time.Since(start))

	if res.StatusCode >= 400 {
		return c.decodeError(res, endpoint)
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if !env.Success {
		apiErr := &APIError{StatusCode: res.StatusCode, Code: env.Code, Message: env.errorMessage(), Wait: waitFrom(env.WaitSeconds)}
		c.log.Warn().Err(apiErr).Str("endpoint", endpoint).Msg("backend rejected request")
		return apiErr
	}
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", endpoint, err)
	}
	return nil
}

func (c *Client) decodeError(res *http.Response, endpoint string) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(raw))}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.Code = env.Code
		if msg := env.errorMessage(); msg != "" {
			apiErr.Message = msg
		}
		apiErr.Wait = waitFrom(env.WaitSeconds)
	}
	if apiErr.Wait == 0 {
		apiErr.Wait = retryAfter(res.Header.Get("Retry-After"))
	}

	evt := c.log.Warn()
	if res.StatusCode >= 500 {
		evt = c.log.Error()
	}
	evt.Int("status_code", res.StatusCode).
		Str("endpoint", endpoint).
		Str("code", apiErr.Code).
		Dur("wait", apiErr.Wait).
		Msg("backend returned error response")
	return apiErr
}

func (c *Client) buildURL(elem ...string) string {
	clone := *c.baseURL
	clone.Path = path.Join(append([]string{c.baseURL.Path}, elem...)...)
	return clone.String()
}

// waitFrom converts waitSeconds to a Duration. Values a Duration cannot hold count as no wait.
func waitFrom(secs *float64) time.Duration {
	if secs == nil || math.IsNaN(*secs) || *secs <= 0 {
		return 0
	}
	if *secs >= float64(math.MaxInt64)/float64(time.Second) {
		return 0
	}
	return time.Duration(*secs * float64(time.Second))
}

// retryAfter parses the delay-seconds form of Retry-After.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
