package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docsheet/docsheet/internal/config"
)

func TestMetricsServerDisabledWithoutAddress(t *testing.T) {
	cfg := config.Config{}
	if srv := NewMetricsServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); srv != nil {
		t.Fatal("expected nil server without metrics address")
	}
}

func TestMetricsServerServesPrometheusText(t *testing.T) {
	cfg := config.Config{Metrics: config.MetricsConfig{Address: "127.0.0.1:0"}}
	srv := NewMetricsServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if srv == nil {
		t.Fatal("expected metrics server")
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "docsheet_http_requests_total") && !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics body: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("healthz status = %d", rr.Code)
	}
}

func TestRunIDContextHelpers(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "abc123")
	if got := RunIDFromContext(ctx); got != "abc123" {
		t.Fatalf("RunIDFromContext() = %q", got)
	}
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Fatalf("RunIDFromContext() = %q", got)
	}
	if NewRunID() == NewRunID() {
		t.Fatal("expected unique run ids")
	}
}

func TestLoggingMiddlewareDoesNotPanic(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
}

func TestNewLoggerWritesServiceAttributes(t *testing.T) {
	var buf strings.Builder
	cfg := config.Config{Profile: config.ProfileTest, Service: config.ServiceConfig{Name: "docsheet"}}
	cfg.Observability.LogJSON = true
	cfg.Observability.LogLevel = slog.LevelInfo

	NewLogger(cfg, &buf).Info("hello")
	out := buf.String()
	if !strings.Contains(out, `"service":"docsheet"`) || !strings.Contains(out, `"profile":"test"`) {
		t.Fatalf("log output = %s", out)
	}
}
