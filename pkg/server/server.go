package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/reactor/pkg/middleware"
	"github.com/vango-dev/reactor/pkg/store"
)

// Server serves a store over HTTP and websockets.
type Server struct {
	store   *store.Store
	config  Config
	logger  *slog.Logger
	metrics *middleware.Metrics
	handler http.Handler

	upgrader websocket.Upgrader

	sessions   map[string]*Session
	sessionsMu sync.Mutex

	httpServer *http.Server
	closed     bool
	mu         sync.Mutex
}

// New creates a server for st.
func New(st *store.Store, config Config) *Server {
	config = config.withDefaults()

	s := &Server{
		store:    st,
		config:   config,
		logger:   config.Logger.With("component", "server"),
		metrics:  middleware.NewMetrics(middleware.WithRegistry(config.Registry)),
		sessions: make(map[string]*Session),
	}

	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = sameOrigin
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}

	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(s.metrics.Handler)
	r.Use(middleware.OpenTelemetry(
		middleware.WithTracerProvider(s.config.TracerProvider),
		middleware.WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != s.config.MetricsPath
		}),
	))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, s.config.MetricsPath,
		promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{Registry: s.config.Registry}))

	r.Get("/state", s.handleGetState)
	r.Get("/state/{key}", s.handleGetKey)
	r.Put("/state/{key}", s.handlePutKey)
	r.Post("/commit/{mutation}", s.handleCommit)
	r.Post("/dispatch/{action}", s.handleDispatch)
	r.Get("/getters/{name}", s.handleGetter)
	r.Get("/watch", s.handleWatch)
	return r
}

// Handler returns the HTTP handler, for mounting in another router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe listens on Config.Addr and serves until ctx is cancelled,
// then shuts down gracefully. A cancelled ctx is not an error.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown closes every session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	httpServer := s.httpServer
	s.mu.Unlock()

	for _, sess := range s.sessionList() {
		sess.Close()
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// Sessions returns the open sessions ordered by ID.
func (s *Server) Sessions() []*Session {
	return s.sessionList()
}

func (s *Server) sessionList() []*Session {
	s.sessionsMu.Lock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.sessionsMu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].SessionID() < list[j].SessionID() })
	return list
}

func (s *Server) addSession(sess *Session) {
	s.sessionsMu.Lock()
	s.sessions[sess.SessionID()] = sess
	s.sessionsMu.Unlock()
	s.metrics.SessionOpened()
}

func (s *Server) removeSession(sess *Session) {
	s.sessionsMu.Lock()
	_, ok := s.sessions[sess.SessionID()]
	delete(s.sessions, sess.SessionID())
	s.sessionsMu.Unlock()
	if ok {
		s.metrics.SessionClosed()
	}
}

// sameOrigin accepts requests without an Origin header and those whose
// origin host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
