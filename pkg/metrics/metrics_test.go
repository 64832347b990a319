package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveFetch(t *testing.T) {
	r := New()
	r.ObserveFetch("ok", 20*time.Millisecond)
	r.ObserveFetch("ok", 30*time.Millisecond)
	r.ObserveFetch("http_error", time.Millisecond)

	if got := testutil.ToFloat64(r.fetchTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2 ok fetches, got %v", got)
	}
	if got := testutil.ToFloat64(r.fetchTotal.WithLabelValues("http_error")); got != 1 {
		t.Fatalf("expected 1 failed fetch, got %v", got)
	}
}

func TestCountersAndGauge(t *testing.T) {
	r := New()
	r.AddValidated("ok", 3)
	r.AddValidated("skipped", 0)
	r.IncDataError("bdate")
	r.IncCommand("friends", "ok")
	r.ConnOpened()
	r.ConnOpened()
	r.ConnClosed()

	if got := testutil.ToFloat64(r.validateTotal.WithLabelValues("ok")); got != 3 {
		t.Fatalf("validated ok = %v", got)
	}
	if got := testutil.ToFloat64(r.dataErrors.WithLabelValues("bdate")); got != 1 {
		t.Fatalf("data errors = %v", got)
	}
	if got := testutil.ToFloat64(r.connections); got != 1 {
		t.Fatalf("connections = %v", got)
	}
	r.ObserveHTTP("POST", 201, 5*time.Millisecond)
	if n := testutil.CollectAndCount(r.httpDuration); n != 1 {
		t.Fatalf("expected 1 http series, got %d", n)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.ObserveFetch("ok", time.Second)
	r.AddValidated("ok", 1)
	r.IncDataError("bdate")
	r.IncCommand("help", "ok")
	r.ConnOpened()
	r.ConnClosed()
	r.ObserveHTTP("GET", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil registry handler, got %d", rec.Code)
	}
}

func TestHandlerExposition(t *testing.T) {
	r := New()
	r.IncCommand("ismutual", "ok")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `vkinsights_command_executed_total{command="ismutual",status="ok"} 1`) {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}
