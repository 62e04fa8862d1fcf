// internal/pkg/apiclient/client.go
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	xerrors "authbridge/internal/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "authbridge/apiclient"

// Headers are extra request headers.
type Headers map[string]string

// Response is a raw HTTP result.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client issues JSON requests with ambient credentials: cookies set by the API
// are kept in a jar and replayed on every later call.
type Client struct {
	http   *http.Client
	logger *zap.Logger
	tracer trace.Tracer
}

type Option func(*Client)

// WithHTTPClient replaces the transport. A client without a jar gets one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		// cookiejar.New only fails with a broken PublicSuffixList.
		jar, _ := cookiejar.New(nil)
		c.http.Jar = jar
	}
	return c
}

// Post sends body as JSON and decodes the response into out (when non-nil).
func (c *Client) Post(ctx context.Context, url string, body, out interface{}, headers Headers) error {
	return c.doJSON(ctx, http.MethodPost, url, body, out, headers)
}

func (c *Client) Get(ctx context.Context, url string, out interface{}, headers Headers) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, out, headers)
}

func (c *Client) Put(ctx context.Context, url string, body, out interface{}, headers Headers) error {
	return c.doJSON(ctx, http.MethodPut, url, body, out, headers)
}

func (c *Client) Delete(ctx context.Context, url string, out interface{}, headers Headers) error {
	return c.doJSON(ctx, http.MethodDelete, url, nil, out, headers)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out interface{}, headers Headers) error {
	resp, err := c.Send(ctx, method, url, body, headers)
	if err != nil {
		return xerrors.Request(0, "", err)
	}

	if !resp.OK() {
		return xerrors.Request(resp.Status, string(resp.Body), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return xerrors.Request(resp.Status, "Invalid JSON response", err)
	}
	return nil
}

// Send performs the request and returns the raw status and body whatever the status.
// Only transport failures are returned as errors.
func (c *Client) Send(ctx context.Context, method, url string, body interface{}, headers Headers) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", url),
	)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "encode body")
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.logger.Debug("api request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	if res.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(res.StatusCode))
	}
	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", res.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	return &Response{Status: res.StatusCode, Body: data}, nil
}
