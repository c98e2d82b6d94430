// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ragapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/bankchat/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the answering client.
type ClientError struct {
	Type    ErrorType
	Message string
	// Status is the HTTP status code for ErrTypeStatus, zero otherwise.
	Status int
	Cause  error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	// ErrTypeAborted means the caller cancelled the request.
	ErrTypeAborted
	ErrTypeConnection
	ErrTypeTimeout
	// ErrTypeStatus means the server answered with a non-2xx status.
	ErrTypeStatus
	// ErrTypeServer means the server reported a failure inside the stream.
	ErrTypeServer
	// ErrTypeMalformed marks stream content that could not be parsed.
	ErrTypeMalformed
	ErrTypeInvalidRequest
)

// String returns a short name for logs.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeAborted:
		return "aborted"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeStatus:
		return "status"
	case ErrTypeServer:
		return "server"
	case ErrTypeMalformed:
		return "malformed"
	case ErrTypeInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrAborted = &ClientError{Type: ErrTypeAborted, Message: "request stopped"}
	ErrTimeout = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
)

// IsAborted reports whether err is a caller cancellation.
func IsAborted(err error) bool {
	return errorTypeOf(err) == ErrTypeAborted
}

// IsTimeout reports whether err is a connect or header timeout.
func IsTimeout(err error) bool {
	return errorTypeOf(err) == ErrTypeTimeout
}

// IsStatus reports whether err is a non-2xx response.
func IsStatus(err error) bool {
	return errorTypeOf(err) == ErrTypeStatus
}

// IsMalformed reports whether err describes unparseable stream content.
func IsMalformed(err error) bool {
	return errorTypeOf(err) == ErrTypeMalformed
}

// IsTransportFailure reports whether err is any failure other than a
// caller cancellation.
func IsTransportFailure(err error) bool {
	return err != nil && !IsAborted(err)
}

func errorTypeOf(err error) ErrorType {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ErrTypeUnknown
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultEndpoint is where the answering service listens out of the box.
const DefaultEndpoint = "http://localhost:8000/api/v1/chat/query"

// DefaultConnectTimeout bounds dialing and waiting for response headers.
const DefaultConnectTimeout = 10 * time.Second

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// Endpoint is the full URL the query is posted to.
	Endpoint string

	// Framing of response bodies (default: auto)
	Framing Framing

	// ConnectTimeout bounds dialing and waiting for response headers.
	// The body itself may stream for as long as the server keeps it open.
	ConnectTimeout time.Duration

	// UserAgent sent with every request.
	UserAgent string

	// Logger receives request lifecycle logs. Nil disables logging.
	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint:       DefaultEndpoint,
		Framing:        FramingAuto,
		ConnectTimeout: DefaultConnectTimeout,
		UserAgent:      "bankchat",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client posts questions to the answering service and streams the answers.
//
// The Client is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	defaults := DefaultConfig()
	if config.Endpoint == "" {
		config.Endpoint = defaults.Endpoint
	}
	if config.Framing == "" {
		config.Framing = defaults.Framing
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   config.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = config.ConnectTimeout

	return &Client{
		config: config,
		// No overall Timeout: answers stream until done or cancelled via ctx.
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// Endpoint returns the URL queries are posted to.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Framing returns the configured framing.
func (c *Client) Framing() Framing {
	return c.config.Framing
}

// =============================================================================
// STREAMING QUERY
// =============================================================================

// QueryStream posts req and calls callback for each fragment of the answer,
// synchronously and in arrival order. It returns when the answer is complete,
// the request fails, or ctx is cancelled. Cancellation is reported as an
// ErrTypeAborted error so callers can tell it apart from failures.
func (c *Client) QueryStream(ctx context.Context, req QueryRequest, callback FragmentCallback) error {
	if req.History == nil {
		// The service expects an array, never null.
		req.History = []model.Turn{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to marshal request", Cause: err}
	}

	requestID := uuid.NewString()
	log := c.logger.With(zap.String("request_id", requestID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain, application/x-ndjson")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("X-Request-ID", requestID)

	log.Debug("query started",
		zap.String("endpoint", c.config.Endpoint),
		zap.Int("history_turns", len(req.History)),
		zap.Int("question_len", len(req.Question)))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A short excerpt of the body helps when reading logs.
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn("query rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(excerpt))))
		return &ClientError{
			Type:    ErrTypeStatus,
			Status:  resp.StatusCode,
			Message: "query failed: " + resp.Status,
		}
	}

	framing := resolveFraming(c.config.Framing, resp.Header.Get("Content-Type"))
	reader := NewStreamReader(resp.Body, framing)
	err = reader.Process(ctx, callback)

	stats := reader.Stats()
	log.Debug("query finished",
		zap.String("framing", string(framing)),
		zap.Int("chunks", stats.Chunks),
		zap.Int64("bytes", stats.Bytes),
		zap.Int("sources_fragments", stats.SourceFragments),
		zap.Int("malformed", stats.Malformed),
		zap.Duration("time_to_first", stats.TimeToFirst),
		zap.Duration("duration", stats.Duration),
		zap.Error(err))

	if err == nil {
		return nil
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr
	}
	return classifyTransportError(ctx, err)
}

// classifyTransportError maps a failed Do or body read onto an ErrorType.
// The context is checked first: once the caller has cancelled, whatever the
// transport reports is a consequence of that.
func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
		}
		return &ClientError{Type: ErrTypeAborted, Message: "request stopped", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "answering service unreachable", Cause: err}
}

// resolveFraming applies FramingAuto using the response content type.
func resolveFraming(configured Framing, contentType string) Framing {
	if configured != FramingAuto {
		return configured
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && (mediaType == "application/x-ndjson" || mediaType == "application/jsonl") {
		return FramingNDJSON
	}
	return FramingPrefix
}
