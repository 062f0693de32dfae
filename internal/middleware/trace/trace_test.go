package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"teamspend/internal/log"
	"teamspend/internal/metrics"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: log.FormatJSON, Output: &buf})
	mw := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, logger, metrics.New())

	var ctxID string
	h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
		if log.FromContext(r.Context()).Component() != log.ComponentHTTP {
			t.Errorf("request logger not installed")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workspaces", nil))

	if ctxID == "" || !strings.HasPrefix(ctxID, "req_") {
		t.Fatalf("unexpected request id %q", ctxID)
	}
	if rec.Header().Get(HeaderRequestID) != ctxID {
		t.Fatalf("response header %q, context %q", rec.Header().Get(HeaderRequestID), ctxID)
	}

	out := buf.String()
	if !strings.Contains(out, "HTTP request started") || !strings.Contains(out, `"status_code":418`) {
		t.Fatalf("missing log lines: %s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("4xx completion should log at WARN: %s", out)
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	mw := NewMiddleware(nil, log.New(log.Config{Output: &bytes.Buffer{}}), nil)
	h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("incoming id not propagated: %q", rec.Header().Get(HeaderRequestID))
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK {
		t.Fatalf("status after implicit 200: %d", rw.statusCode)
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
