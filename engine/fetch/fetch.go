// Package fetch issues API requests concurrently over a shared connection
// pool and isolates per-request failures into FetchError records.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/WessleyAI/vk-insights/engine/vkapi"
	"github.com/WessleyAI/vk-insights/pkg/fn"
	"github.com/WessleyAI/vk-insights/pkg/metrics"
)

// Codes for failures that carry no HTTP status.
const (
	CodeTransport = -1
	CodeTimeout   = -2
	CodeRead      = -3
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxConns = 100
	maxDetailBytes  = 512
)

// FetchError describes why a single request produced no payload.
type FetchError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *FetchError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("fetch: %d %s", e.Code, e.Message)
	}
	return fmt.Sprintf("fetch: %d %s: %s", e.Code, e.Message, e.Details)
}

// Result is the outcome of one request. Exactly one of Body, Text or Err
// carries the outcome: Body for JSON payloads, Text for bodies that are not
// JSON, Err for failures.
type Result struct {
	URL  string          `json:"url"`
	Body json.RawMessage `json:"body,omitempty"`
	Text string          `json:"text,omitempty"`
	Err  *FetchError     `json:"error,omitempty"`
}

// OK reports whether the request produced a JSON payload.
func (r Result) OK() bool { return r.Err == nil && r.Body != nil }

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds each request, including reading the body.
	Timeout time.Duration
	// MaxConns caps open connections per host; it is the only concurrency
	// limit applied to a batch.
	MaxConns int
	// Transport overrides the pooled transport, mainly for tests.
	Transport http.RoundTripper
	Logger    *slog.Logger
	Metrics   *metrics.Registry
}

// Fetcher dispatches request batches over one http.Client.
type Fetcher struct {
	client  *http.Client
	pool    *http.Transport
	logger  *slog.Logger
	metrics *metrics.Registry
}

// New creates a Fetcher. Zero option values fall back to defaults.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	f := &Fetcher{logger: opts.Logger.With("component", "fetch"), metrics: opts.Metrics}
	rt := opts.Transport
	if rt == nil {
		f.pool = http.DefaultTransport.(*http.Transport).Clone()
		f.pool.MaxConnsPerHost = opts.MaxConns
		f.pool.MaxIdleConnsPerHost = opts.MaxConns
		rt = f.pool
	}
	f.client = &http.Client{
		Timeout:   opts.Timeout,
		Transport: otelhttp.NewTransport(rt),
	}
	return f
}

// FetchAll issues every request concurrently and blocks until all of them
// have resolved. result[i] always corresponds to the i-th request; a failed
// request never affects its siblings. Idle pooled connections are released
// before FetchAll returns.
func (f *Fetcher) FetchAll(ctx context.Context, reqs iter.Seq[vkapi.Request]) []Result {
	defer f.Close()
	batch := slices.Collect(reqs)
	if len(batch) == 0 {
		return nil
	}
	return fn.ParMap(batch, 0, func(_ int, req vkapi.Request) Result {
		return f.fetch(ctx, req)
	})
}

// Close releases idle pooled connections. The Fetcher stays usable.
func (f *Fetcher) Close() {
	if f.pool != nil {
		f.pool.CloseIdleConnections()
	}
}

func (f *Fetcher) fetch(ctx context.Context, req vkapi.Request) Result {
	start := time.Now()
	res := f.do(ctx, req)

	outcome := "ok"
	switch {
	case res.Err != nil && res.Err.Code > 0:
		outcome = "http_error"
	case res.Err != nil && res.Err.Code == CodeTimeout:
		outcome = "timeout"
	case res.Err != nil:
		outcome = "transport_error"
	case res.Body == nil:
		outcome = "not_json"
	}
	f.metrics.ObserveFetch(outcome, time.Since(start))

	if res.Err != nil {
		f.logger.Warn("request failed",
			"url", redact(req.URL),
			"code", res.Err.Code,
			"error", res.Err.Message,
		)
	}
	return res
}

func (f *Fetcher) do(ctx context.Context, req vkapi.Request) Result {
	res := Result{URL: req.URL}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		res.Err = &FetchError{Code: CodeTransport, Message: "invalid request", Details: err.Error()}
		return res
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		res.Err = transportError(err)
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		details := string(bytes.TrimSpace(body))
		if err != nil {
			details = strings.TrimSpace(details + " (body read failed: " + err.Error() + ")")
		}
		res.Err = &FetchError{
			Code:    resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
			Details: truncate(details, maxDetailBytes),
		}
		return res
	}
	if err != nil {
		if isTimeout(err) {
			res.Err = &FetchError{Code: CodeTimeout, Message: "timeout reading body", Details: err.Error()}
		} else {
			res.Err = &FetchError{Code: CodeRead, Message: "read body", Details: err.Error()}
		}
		return res
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		res.Body = json.RawMessage(trimmed)
	} else {
		res.Text = string(body)
	}
	return res
}

func transportError(err error) *FetchError {
	// url.Error repeats the request URL, which carries the access token.
	details := err.Error()
	var ue *url.Error
	if errors.As(err, &ue) {
		details = ue.Err.Error()
	}
	switch {
	case isTimeout(err):
		return &FetchError{Code: CodeTimeout, Message: "timeout", Details: details}
	case errors.Is(err, context.Canceled):
		return &FetchError{Code: CodeTransport, Message: "canceled", Details: details}
	}
	return &FetchError{Code: CodeTransport, Message: "connection failed", Details: details}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
