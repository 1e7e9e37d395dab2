package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func healthServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthChecker_StatusOnly(t *testing.T) {
	srv := healthServer(t, http.StatusOK, "ok")
	checker := NewHealthChecker()

	if err := checker.Check(context.Background(), srv.URL, "", ""); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
}

func TestHealthChecker_NonSuccessStatus(t *testing.T) {
	srv := healthServer(t, http.StatusServiceUnavailable, "down")
	checker := NewHealthChecker()

	if err := checker.Check(context.Background(), srv.URL, "", ""); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestHealthChecker_JsonPath(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"status": "ok", "checks": {"db": true}}`)
	checker := NewHealthChecker()

	if err := checker.Check(context.Background(), srv.URL, "$.status", "ok"); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if err := checker.Check(context.Background(), srv.URL, "$.checks.db", "true"); err != nil {
		t.Fatalf("Check failed on nested path: %v", err)
	}
	if err := checker.Check(context.Background(), srv.URL, "$.status", "degraded"); err == nil {
		t.Fatal("expected mismatch error")
	}
	if err := checker.Check(context.Background(), srv.URL, "$.missing", "x"); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestHealthChecker_NonJsonBody(t *testing.T) {
	srv := healthServer(t, http.StatusOK, "plain text")
	checker := NewHealthChecker()

	if err := checker.Check(context.Background(), srv.URL, "$.status", "ok"); err == nil {
		t.Fatal("expected error for non-json body with expression")
	}
}
