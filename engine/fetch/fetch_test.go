package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/WessleyAI/vk-insights/engine/vkapi"
	"github.com/WessleyAI/vk-insights/pkg/metrics"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"response":{"items":[{"path":%q}]}}`, r.URL.Path)
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func requests(urls ...string) iter.Seq[vkapi.Request] {
	return func(yield func(vkapi.Request) bool) {
		for _, u := range urls {
			if !yield(vkapi.Request{URL: u}) {
				return
			}
		}
	}
}

func TestFetchAll_PreservesOrder(t *testing.T) {
	srv := newTestServer(t)
	f := New(Options{Timeout: 5 * time.Second})

	var urls []string
	for i := range 20 {
		urls = append(urls, fmt.Sprintf("%s/ok/%d", srv.URL, i))
	}
	results := f.FetchAll(context.Background(), requests(urls...))

	if len(results) != len(urls) {
		t.Fatalf("expected %d results, got %d", len(urls), len(results))
	}
	for i, res := range results {
		if res.URL != urls[i] {
			t.Fatalf("result %d: url %q, want %q", i, res.URL, urls[i])
		}
		if !res.OK() {
			t.Fatalf("result %d not ok: %+v", i, res)
		}
		if want := fmt.Sprintf(`"/ok/%d"`, i); !strings.Contains(string(res.Body), want) {
			t.Fatalf("result %d body %s does not mention %s", i, res.Body, want)
		}
	}
}

func TestFetchAll_IsolatesServerError(t *testing.T) {
	srv := newTestServer(t)
	reg := metrics.New()
	f := New(Options{Timeout: 5 * time.Second, Metrics: reg})

	results := f.FetchAll(context.Background(), requests(
		srv.URL+"/ok/a",
		srv.URL+"/fail",
		srv.URL+"/ok/b",
	))

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].OK() || !results[2].OK() {
		t.Fatalf("sibling requests should succeed: %+v", results)
	}
	e := results[1].Err
	if e == nil {
		t.Fatal("expected error record for 500")
	}
	if e.Code != http.StatusInternalServerError {
		t.Fatalf("expected code 500, got %d", e.Code)
	}
	if e.Details != "boom" {
		t.Fatalf("expected body in details, got %q", e.Details)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestFetchAll_ErrorStatusKeptWhenBodyReadFails(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Header:     make(http.Header),
			Body:       io.NopCloser(iotest.ErrReader(errors.New("connection reset"))),
			Request:    r,
		}, nil
	})
	f := New(Options{Transport: rt})

	res := f.FetchAll(context.Background(), requests("http://vk.test/method/friends.get"))[0]
	if res.Err == nil || res.Err.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 error, got %+v", res.Err)
	}
	if !strings.Contains(res.Err.Details, "connection reset") {
		t.Fatalf("expected read failure in details, got %q", res.Err.Details)
	}
}

func TestFetchAll_NonJSONBodyDegradesToText(t *testing.T) {
	srv := newTestServer(t)
	f := New(Options{})

	results := f.FetchAll(context.Background(), requests(srv.URL+"/text"))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	res := results[0]
	if res.Err != nil || res.Body != nil {
		t.Fatalf("expected text result, got %+v", res)
	}
	if res.Text != "<html>maintenance</html>" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestFetchAll_Timeout(t *testing.T) {
	srv := newTestServer(t)
	f := New(Options{Timeout: 50 * time.Millisecond})

	results := f.FetchAll(context.Background(), requests(srv.URL+"/slow", srv.URL+"/ok/x"))
	if results[0].Err == nil || results[0].Err.Code != CodeTimeout {
		t.Fatalf("expected timeout error, got %+v", results[0])
	}
	if !results[1].OK() {
		t.Fatalf("fast sibling should succeed: %+v", results[1])
	}
}

func TestFetchAll_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Options{Timeout: time.Second})
	results := f.FetchAll(context.Background(), requests(addr+"/ok/1?access_token=secret"))

	e := results[0].Err
	if e == nil || e.Code != CodeTransport {
		t.Fatalf("expected transport error, got %+v", results[0])
	}
	if strings.Contains(e.Details, "secret") {
		t.Fatalf("details leak the token: %q", e.Details)
	}
}

func TestFetchAll_Empty(t *testing.T) {
	f := New(Options{})
	if got := f.FetchAll(context.Background(), requests()); len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
}

func TestFetchAll_CanceledContext(t *testing.T) {
	srv := newTestServer(t)
	f := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.FetchAll(ctx, requests(srv.URL+"/ok/1", srv.URL+"/ok/2"))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Err == nil {
			t.Fatalf("expected canceled error, got %+v", res)
		}
	}
}

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		err  FetchError
		want string
	}{
		{FetchError{Code: 500, Message: "Internal Server Error"}, "fetch: 500 Internal Server Error"},
		{FetchError{Code: CodeTimeout, Message: "timeout", Details: "deadline"}, "fetch: -2 timeout: deadline"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	got := redact("https://api.vk.com/method/friends.get?access_token=abc&user_id=1")
	if strings.Contains(got, "abc") {
		t.Fatalf("token not redacted: %s", got)
	}
	if !strings.Contains(got, "user_id=1") {
		t.Fatalf("other params lost: %s", got)
	}
	if got := redact("::bad"); got != "::bad" {
		t.Fatal("unparsable url should be returned unchanged")
	}
}
