package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestRouter(mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("item " + chi.URLParam(r, "id")))
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	return r
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))
	r := newTestRouter(m.Handler)

	for _, path := range []string{"/items/1", "/items/2", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/items/{id}", "200")); got != 2 {
		t.Errorf("requests for /items/{id} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/fail", "500")); got != 1 {
		t.Errorf("requests for /fail = %v, want 1", got)
	}

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.FrameSent()
	m.FrameDropped()
	if got := testutil.ToFloat64(m.activeSessions); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.framesSent); got != 1 {
		t.Errorf("frames sent = %v, want 1", got)
	}

	if problems, err := testutil.GatherAndLint(reg); err != nil || len(problems) > 0 {
		t.Errorf("metric lint: %v %v", problems, err)
	}
}

// recordingSpan captures the calls the middleware makes.
type recordingSpan struct {
	noop.Span
	name   string
	attrs  []attribute.KeyValue
	status codes.Code
	ended  bool
}

func (s *recordingSpan) SetName(name string) { s.name = name }

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.attrs = append(s.attrs, kv...)
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

func (s *recordingSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

type recordingTracer struct {
	noop.Tracer
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{name: name, attrs: cfg.Attributes()}
	t.spans = append(t.spans, span)
	return trace.ContextWithSpan(ctx, span), span
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

func TestOpenTelemetry(t *testing.T) {
	tracer := &recordingTracer{}
	var spanInHandler trace.Span

	r := chi.NewRouter()
	r.Use(OpenTelemetry(
		WithTracerProvider(recordingProvider{tracer: tracer}),
		WithRequestFilter(func(r *http.Request) bool { return r.URL.Path != "/healthz" }),
		WithAttributeExtractor(func(*http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		spanInHandler = trace.SpanFromContext(r.Context())
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/items/7", "/fail", "/healthz"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if len(tracer.spans) != 2 {
		t.Fatalf("expected 2 spans (healthz filtered), got %d", len(tracer.spans))
	}

	ok := tracer.spans[0]
	if ok.name != "HTTP GET /items/{id}" {
		t.Errorf("span name = %q", ok.name)
	}
	if spanInHandler != trace.Span(ok) {
		t.Error("handler context does not carry the request span")
	}
	if v, found := ok.attr("test.attr"); !found || v.AsString() != "ok" {
		t.Error("custom attribute missing")
	}
	if v, found := ok.attr("http.status_code"); !found || v.AsInt64() != 200 {
		t.Errorf("status attribute = %v", v)
	}
	if ok.status != codes.Ok || !ok.ended {
		t.Errorf("expected ended span with Ok status, got %v ended=%v", ok.status, ok.ended)
	}

	if failed := tracer.spans[1]; failed.status != codes.Error {
		t.Errorf("5xx span status = %v, want Error", failed.status)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := newTestRouter(Logger(logger))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/3", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "level=INFO") || !strings.Contains(lines[0], "route=/items/{id}") || !strings.Contains(lines[0], "status=200") {
		t.Errorf("unexpected first line: %s", lines[0])
	}
	if !strings.Contains(lines[1], "level=WARN") || !strings.Contains(lines[1], "status=500") {
		t.Errorf("unexpected second line: %s", lines[1])
	}
}
