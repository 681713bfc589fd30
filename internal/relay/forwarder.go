package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/sqs-webhook-relay/internal/config"
	"github.com/example/sqs-webhook-relay/internal/models"
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ForwarderOption customises the behaviour of the forwarder.
type ForwarderOption func(*Forwarder)

// WithHTTPClient overrides the HTTP client used to reach the local endpoint.
func WithHTTPClient(client HTTPClient) ForwarderOption {
	return func(f *Forwarder) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithBodyPreviewLimit adjusts how many bytes of the response body are read
// for the debug preview.
func WithBodyPreviewLimit(limit int64) ForwarderOption {
	return func(f *Forwarder) {
		if limit > 0 {
			f.maxBodyBytes = limit
		}
	}
}

// Forwarder posts reconstructed requests to the fixed local endpoint. The
// response body never affects classification; it is read only for a bounded
// diagnostic preview and discarded.
type Forwarder struct {
	logger       zerolog.Logger
	targetURL    string
	httpClient   HTTPClient
	maxBodyBytes int64
}

// NewForwarder constructs a forwarder for the configured target endpoint.
func NewForwarder(cfg config.TargetConfig, logger zerolog.Logger, opts ...ForwarderOption) (*Forwarder, error) {
	if cfg.URL == "" {
		return nil, errors.New("forwarder: target URL is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	timeout := time.Duration(cfg.ForwardTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	f := &Forwarder{
		logger:       logger,
		targetURL:    cfg.URL,
		httpClient:   &http.Client{Timeout: timeout},
		maxBodyBytes: 4 * 1024,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f, nil
}

// Forward sends the exact payload bytes to the local endpoint and classifies
// the result. The returned error is non-nil only for transport failures, so
// callers can distinguish shutdown cancellation from an ordinary outage.
func (f *Forwarder) Forward(ctx context.Context, req *OutboundRequest) (models.Outcome, error) {
	if req == nil {
		return models.Outcome{Kind: models.OutcomeNetworkFailure}, errors.New("forwarder: request is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.targetURL, bytes.NewReader(req.Body))
	if err != nil {
		return models.Outcome{Kind: models.OutcomeNetworkFailure}, fmt.Errorf("forwarder: new request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return models.Outcome{Kind: models.OutcomeNetworkFailure}, fmt.Errorf("forwarder: send: %w", err)
	}
	defer resp.Body.Close()

	preview, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if readErr != nil {
		f.logger.Debug().Err(readErr).Msg("forwarder: could not read response body")
	} else if len(preview) > 0 {
		f.logger.Debug().Str("response_body", previewString(string(preview), 200)).Msg("forwarder: response preview")
	}

	return ClassifyStatus(resp.StatusCode), nil
}
