// Package httpexec runs a single outbound HTTP request and records what
// happened: status, transport error, and the final URL after redirects.
package httpexec

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/api/googleapi"
)

// DefaultMaxRedirects is the number of redirects followed unless SetRedirects says otherwise.
const DefaultMaxRedirects = 30

var (
	// ErrSpent is returned when Execute is called on an executor that already ran.
	ErrSpent = errors.New("executor already executed")

	errTooManyRedirects = errors.New("too many redirects")
)

// Option configures an Executor.
type Option func(*Executor)

// WithInsecureSkipVerify disables TLS certificate verification. Off by default.
func WithInsecureSkipVerify(skip bool) Option {
	return func(e *Executor) {
		e.insecure = skip
	}
}

// WithTransport sets the round tripper requests are sent through.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Executor) {
		e.base = rt
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// Executor wraps one request/response cycle. It is single-use: create a new
// one for every request.
type Executor struct {
	url          string
	headers      []string
	post         bool
	follow       bool
	maxRedirects int
	insecure     bool
	base         http.RoundTripper
	logger       *slog.Logger

	spent       bool
	errorCode   ErrorCode
	status      int
	errorString string
	lastURL     string
	header      http.Header
	body        []byte
}

// New creates an executor targeting url.
func New(url string, opts ...Option) *Executor {
	e := &Executor{
		url:          url,
		follow:       true,
		maxRedirects: DefaultMaxRedirects,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configure stages the header lines ("Name: value"), the target URL and the
// method hint for the next execution. An empty url keeps the current target;
// a nil isPost keeps the current hint.
func (e *Executor) Configure(headers []string, url string, isPost *bool) {
	e.headers = headers
	if url != "" {
		e.url = url
	}
	if isPost != nil {
		e.post = *isPost
	}
}

// SetRedirects controls whether redirects are followed and how many.
func (e *Executor) SetRedirects(follow bool, max int) {
	e.follow = follow
	e.maxRedirects = max
}

// Execute sends the request and returns the response body. method may be any
// HTTP verb; when empty, the method hint from Configure picks POST or GET.
func (e *Executor) Execute(ctx context.Context, method string, body []byte) (string, error) {
	if e.spent {
		return "", ErrSpent
	}
	e.spent = true

	if method == "" {
		method = http.MethodGet
		if e.post {
			method = http.MethodPost
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.url, reader)
	if err != nil {
		e.fail(err)
		return "", fmt.Errorf("unable to create request: %w", err)
	}
	for _, line := range e.headers {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	start := time.Now()
	resp, err := e.client().Do(req)
	if err != nil {
		e.fail(err)
		e.logger.DebugContext(ctx, "request failed",
			"method", method,
			"url", e.url,
			"error_code", int(e.errorCode),
			"duration", time.Since(start).String(),
			"error", err,
		)
		return "", fmt.Errorf("unable to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	e.status = resp.StatusCode
	e.header = resp.Header
	e.lastURL = resp.Request.URL.String()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e.fail(err)
		return "", fmt.Errorf("unable to read response: %w", err)
	}
	e.body = data

	e.logger.DebugContext(ctx, "request completed",
		"method", method,
		"url", e.lastURL,
		"status", e.status,
		"duration", time.Since(start).String(),
	)

	return string(data), nil
}

// ErrorCode returns the transport error code of the last execution, 0 if none.
func (e *Executor) ErrorCode() ErrorCode {
	return e.errorCode
}

// Status returns the HTTP status code, 0 when no response was received.
func (e *Executor) Status() int {
	return e.status
}

// ErrorString returns the transport error message, empty if none.
func (e *Executor) ErrorString() string {
	return e.errorString
}

// LastURL returns the effective URL after redirects.
func (e *Executor) LastURL() string {
	return e.lastURL
}

// Header returns the response headers.
func (e *Executor) Header() http.Header {
	return e.header
}

// APIError decodes a non-2xx response into a *googleapi.Error. It returns nil
// for successful responses and when no response was received.
func (e *Executor) APIError() error {
	if e.status == 0 {
		return nil
	}
	return googleapi.CheckResponse(&http.Response{
		StatusCode: e.status,
		Header:     e.header,
		Body:       io.NopCloser(bytes.NewReader(e.body)),
	})
}

func (e *Executor) fail(err error) {
	e.errorCode = classify(err)
	e.errorString = err.Error()
	e.lastURL = e.url

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		e.lastURL = urlErr.URL
	}
}

func (e *Executor) client() *http.Client {
	base := e.base
	if base == nil {
		base = http.DefaultTransport
	}
	if e.insecure {
		if t, ok := base.(*http.Transport); ok {
			t = t.Clone()
			if t.TLSClientConfig == nil {
				t.TLSClientConfig = &tls.Config{}
			}
			t.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
			base = t
		}
	}

	return &http.Client{
		Transport:     otelhttp.NewTransport(base),
		CheckRedirect: e.checkRedirect,
	}
}

func (e *Executor) checkRedirect(_ *http.Request, via []*http.Request) error {
	if !e.follow {
		return http.ErrUseLastResponse
	}
	if len(via) > e.maxRedirects {
		return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, e.maxRedirects)
	}
	return nil
}
