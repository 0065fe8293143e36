// Package emag implements the marketplace catalog client over the eMAG
// Marketplace API.
package emag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client implements marketplace.CatalogClient. Every request of every account
// waits on one shared rate limiter.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new client with the given configuration
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("emag")
	return c, nil
}

// FetchCatalogPage reads one page of the account's offers
func (c *Client) FetchCatalogPage(ctx context.Context, account marketplace.Account, req marketplace.CatalogPageRequest) (*marketplace.CatalogPage, error) {
	creds, ok := c.config.Accounts[account]
	if !ok {
		return nil, &marketplace.ClientError{
			Account:    account,
			StatusCode: http.StatusUnauthorized,
			Message:    "no credentials configured",
		}
	}

	body := readRequest{
		CurrentPage:  req.Page,
		ItemsPerPage: req.PageSize,
	}
	if !req.IncludeInactive {
		status := statusActive
		body.Status = &status
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &marketplace.ClientError{Account: account, Message: "rate limiter: " + err.Error(), Err: err}
	}

	ctx, span := telemetry.StartSpan(ctx, "emag.product_offer.read",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrAccount, account.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPage, req.Page),
	)
	defer span.End()

	resp, err := c.doRequest(ctx, account, creds, productOfferReadPath, body)
	if err != nil {
		var ce *marketplace.ClientError
		if errors.As(err, &ce) && ce.StatusCode != 0 {
			telemetry.SetAttributes(span, telemetry.SpanAttrStatus, ce.StatusCode)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "marketplace.items", len(resp.Results))

	items := make([]marketplace.RawItem, len(resp.Results))
	for i, raw := range resp.Results {
		items[i] = marketplace.RawItem(raw)
	}

	c.logger.Debug("Fetched catalog page",
		zap.String("account", account.String()),
		zap.Int("page", req.Page),
		zap.Int("items", len(items)),
	)

	return &marketplace.CatalogPage{
		Items:     items,
		Page:      req.Page,
		FetchedAt: c.now(),
	}, nil
}

// doRequest posts a JSON body and decodes the response envelope.
// Every failure is returned as *marketplace.ClientError.
func (c *Client) doRequest(ctx context.Context, account marketplace.Account, creds Credentials, path string, payload any) (*readResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &marketplace.ClientError{Account: account, StatusCode: http.StatusBadRequest, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &marketplace.ClientError{Account: account, StatusCode: http.StatusBadRequest, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(creds.Username, creds.Password)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &marketplace.ClientError{Account: account, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	// read one byte past the cap to detect oversized bodies
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes+1))
	if err != nil {
		return nil, &marketplace.ClientError{Account: account, Message: "read response: " + err.Error(), Err: err}
	}
	if int64(len(raw)) > c.config.MaxResponseBytes {
		return nil, &marketplace.ClientError{
			Account:    account,
			StatusCode: http.StatusRequestEntityTooLarge,
			Message:    fmt.Sprintf("response exceeds %d bytes", c.config.MaxResponseBytes),
		}
	}

	var envelope readResponse
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil {
			if text := envelope.messageText(); text != "" {
				msg = text
			}
		}
		return nil, &marketplace.ClientError{Account: account, StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, &marketplace.ClientError{
			Account:    account,
			StatusCode: resp.StatusCode,
			Message:    "invalid response body",
			Err:        decodeErr,
		}
	}

	if envelope.IsError {
		msg := envelope.messageText()
		if msg == "" {
			msg = "request rejected"
		}
		return nil, &marketplace.ClientError{
			Account:    account,
			StatusCode: http.StatusBadRequest,
			Message:    msg,
		}
	}

	return &envelope, nil
}

// Ensure Client implements CatalogClient
var _ marketplace.CatalogClient = (*Client)(nil)
