// Package middleware provides HTTP middleware for reactor servers.
//
// Every constructor returns a func(http.Handler) http.Handler, so the
// middleware mounts on chi routers as well as on plain net/http muxes.
//
// # OpenTelemetry
//
// OpenTelemetry starts a server span per request, named after the matched
// chi route pattern, and marks 5xx responses as errors:
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("reactor"),
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	))
//
// The tracer comes from the global OpenTelemetry provider unless
// WithTracerProvider is given.
//
// # Prometheus Metrics
//
// NewMetrics registers:
//   - reactor_http_requests_total: requests by method, route and status
//   - reactor_http_request_duration_seconds: request latency histogram
//   - reactor_active_sessions: open websocket sessions
//   - reactor_frames_sent_total: frames pushed to sessions
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	r.Use(m.Handler)
//
// # Logging
//
// Logger writes one slog record per request with method, route, status,
// size, duration and the chi request ID.
package middleware
