// AngelaMos | 2026
// metrics_test.go

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AuthEvent("login", "success")
	m.AuthEvent("login", "success")
	m.AuthEvent("login", "failure")
	m.AuditDropped()
	m.Delivery("sent")
	m.Purged("sessions", 3)
	m.Purged("sessions", 0)

	if got := testutil.ToFloat64(m.authEvents.WithLabelValues("login", "success")); got != 2 {
		t.Fatalf("login success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.auditDropped); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.janitorPurged.WithLabelValues("sessions")); got != 3 {
		t.Fatalf("purged = %v, want 3", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.AuthEvent("login", "success")
	m.AuditDropped()
	m.AuditSinkError()
	m.Delivery("sent")
	m.Purged("sessions", 1)
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/things/42", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/v1/things/{id}", "418"))
	if got != 1 {
		t.Fatalf("requests = %v, want 1", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "taskflow_auth_http_requests_total") {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
}
