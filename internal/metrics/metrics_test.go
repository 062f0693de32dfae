package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.ObserveHTTP("GET", 200, time.Millisecond)
	r.RecordAggregation("increment", OutcomeApplied)
	r.SetDrift("w", 10)
	r.IncRateLimited()
	r.RecordPublish("expense.created", nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("nil registry handler: got %d", rec.Code)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	r := New()
	r.ObserveHTTP("POST", 201, 5*time.Millisecond)
	r.RecordAggregation("increment", OutcomeApplied)
	r.RecordAggregation("decrement", OutcomeSkippedNoWS)
	r.SetDrift("w1", -250)
	r.RecordPublish("expense.created", errors.New("down"))

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`teamspend_http_requests_total{method="POST",status="201"} 1`,
		`teamspend_aggregation_updates_total{direction="decrement",outcome="skipped_no_workspace"} 1`,
		`teamspend_workspace_total_drift_cents{workspace_id="w1"} -250`,
		`teamspend_events_published_total{result="error",type="expense.created"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}
