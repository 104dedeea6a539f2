package payfast

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
	pkghttp "github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/http"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/resilience"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/timeutil"
)

// Config contains configuration for the PayFast payout client
type Config struct {
	// Base URL for the payouts API
	// Sandbox: https://api.sandbox.payfast.co.za
	// Production: https://api.payfast.co.za
	BaseURL    string
	MerchantID string
	Passphrase string

	// HTTP client timeout
	Timeout time.Duration

	// Retry configuration for transient transport failures. 4xx responses
	// are never retried.
	MaxRetries int
}

// DefaultConfig returns default configuration for the given environment
func DefaultConfig(environment string) Config {
	baseURL := "https://api.payfast.co.za"
	if environment == "sandbox" {
		baseURL = "https://api.sandbox.payfast.co.za"
	}
	return Config{
		BaseURL:    baseURL,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// Client submits payout instructions to PayFast. It implements
// ports.PayoutGateway.
type Client struct {
	cfg        Config
	httpClient ports.HTTPClient
	backoff    resilience.BackoffStrategy
	timeouts   *resilience.TimeoutConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a PayFast client. httpClient may be nil to use a default
// client with the configured timeout.
func NewClient(cfg Config, httpClient ports.HTTPClient, logger *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), timeout)
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		backoff:    resilience.DefaultExponentialBackoff(),
		timeouts:   resilience.DefaultTimeoutConfig(),
		logger:     logger,
		now:        timeutil.Now,
	}
}

type payoutRequestBody struct {
	BeneficiaryID string `json:"beneficiary_id"`
	Amount        int64  `json:"amount"` // cents
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
}

type payoutResponseBody struct {
	Data struct {
		PayoutID string `json:"payout_id"`
		Status   string `json:"status"`
		Message  string `json:"message"`
	} `json:"data"`
}

// SubmitPayout pushes one payout instruction to PayFast. A non-2xx response
// or exhausted retries surface as a gateway submission failure; the caller
// decides what that does to the payout record.
func (c *Client) SubmitPayout(ctx context.Context, req ports.SubmitPayoutRequest) (*ports.SubmitPayoutResult, error) {
	if req.BeneficiaryID == "" || req.Reference == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed,
			"beneficiary and reference are required for a payout submission")
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid.WithDetail("amount", req.Amount.String())
	}

	cents := req.Amount.Shift(2).IntPart()
	body := payoutRequestBody{
		BeneficiaryID: req.BeneficiaryID,
		Amount:        cents,
		Currency:      req.Currency,
		Reference:     req.Reference,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal payout request: %w", err)
	}

	c.logger.Info("Submitting payout to PayFast",
		zap.String("reference", req.Reference),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency),
	)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff.NextDelay(attempt - 1)
			c.logger.Info("Retrying PayFast submission",
				zap.Int("attempt", attempt),
				zap.Duration("backoff_delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, domain.WrapError(domain.ErrorCodeGatewaySubmissionFailed,
					"payout submission cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, retryable, err := c.submitOnce(ctx, payload, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, domain.WrapError(domain.ErrorCodeGatewaySubmissionFailed,
		fmt.Sprintf("payout submission failed for %s", req.Reference), lastErr)
}

func (c *Client) submitOnce(ctx context.Context, payload []byte, body payoutRequestBody) (*ports.SubmitPayoutResult, bool, error) {
	ctx, cancel := c.timeouts.GatewayAttemptContext(ctx)
	defer cancel()

	timestamp := c.now().UTC().Format(time.RFC3339)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/payouts", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("merchant-id", c.cfg.MerchantID)
	httpReq.Header.Set("version", "v1")
	httpReq.Header.Set("timestamp", timestamp)
	httpReq.Header.Set("signature", c.sign(timestamp, body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Transport errors are worth retrying
		return nil, true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	default:
		return nil, false, fmt.Errorf("gateway rejected request with %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed payoutResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Data.PayoutID == "" {
		return nil, false, fmt.Errorf("gateway response missing payout id: %s", strings.TrimSpace(string(raw)))
	}

	c.logger.Info("PayFast payout accepted",
		zap.String("gateway_payout_id", parsed.Data.PayoutID),
		zap.String("status", parsed.Data.Status),
	)
	return &ports.SubmitPayoutResult{
		GatewayPayoutID: parsed.Data.PayoutID,
		Status:          parsed.Data.Status,
		Timestamp:       c.now().UTC(),
	}, false, nil
}

// sign produces the MD5 signature PayFast expects: all request parameters
// sorted by key, URL encoded, with the passphrase appended last.
func (c *Client) sign(timestamp string, body payoutRequestBody) string {
	params := map[string]string{
		"merchant-id":    c.cfg.MerchantID,
		"version":        "v1",
		"timestamp":      timestamp,
		"beneficiary_id": body.BeneficiaryID,
		"amount":         strconv.FormatInt(body.Amount, 10),
		"currency":       body.Currency,
		"reference":      body.Reference,
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params[k]))
	}
	if c.cfg.Passphrase != "" {
		sb.WriteString("&passphrase=")
		sb.WriteString(url.QueryEscape(c.cfg.Passphrase))
	}

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
