package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"serpgrab/pkg/config"
	"serpgrab/pkg/logger"
)

const (
	maxRecordBytes = 10 << 20
	ackMessage     = "Data received and broadcast."
)

// Server accepts geolocation records over HTTP and pushes them to every
// connected WebSocket listener.
type Server struct {
	config   config.RelayConfig
	registry *Registry
	metrics  *Metrics
	logger   logger.Logger
	nextID   atomic.Uint64
}

// NewServer creates a relay server. registry and metrics may be nil.
func NewServer(cfg config.RelayConfig, registry *Registry, metrics *Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if registry == nil {
		registry = NewRegistry(metrics, log)
	}
	return &Server{
		config:   cfg,
		registry: registry,
		metrics:  metrics,
		logger:   log.WithField("component", "relay"),
	}
}

// Registry returns the server's listener registry
func (s *Server) Registry() *Registry { return s.registry }

// Router builds the HTTP routes. The push endpoint is mounted at /ws only
// when it shares the HTTP listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.metrics.Middleware())
	r.Use(s.recoverer)

	r.Post("/geoclip", s.handleRecord)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	if s.config.WSAddr == "" {
		r.Get("/ws", s.handlePush)
	}
	return r
}

// PushHandler upgrades any request to a push connection, for the dedicated
// WebSocket listener.
func (s *Server) PushHandler() http.Handler {
	return http.HandlerFunc(s.handlePush)
}

// Run listens on the configured addresses and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}

	var wsLn net.Listener
	if s.config.WSAddr != "" {
		wsLn, err = net.Listen("tcp", s.config.WSAddr)
		if err != nil {
			httpLn.Close()
			return fmt.Errorf("listen %s: %w", s.config.WSAddr, err)
		}
	}
	return s.Serve(ctx, httpLn, wsLn)
}

// Serve serves on the given listeners until ctx is cancelled, then shuts
// down gracefully. wsLn may be nil.
func (s *Server) Serve(ctx context.Context, httpLn, wsLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	baseCtx := func(net.Listener) context.Context { return gctx }

	servers := []*http.Server{{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       baseCtx,
	}}
	listeners := []net.Listener{httpLn}
	if wsLn != nil {
		servers = append(servers, &http.Server{
			Handler:           s.PushHandler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       baseCtx,
		})
		listeners = append(listeners, wsLn)
	}

	for i, srv := range servers {
		ln := listeners[i]
		logger.LogComponentStart(s.logger, "relay", map[string]interface{}{"addr": ln.Addr().String()})
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", ln.Addr(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down relay")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()

		// Hijacked connections are not tracked by Shutdown
		s.registry.CloseAll("server shutting down")

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	logger.LogComponentStop(s.logger, "relay", err)
	return err
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout > 0 {
		return s.config.ShutdownTimeout
	}
	return 5 * time.Second
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var rec Record
	body := http.MaxBytesReader(w, r.Body, maxRecordBytes)
	if err := json.NewDecoder(body).Decode(&rec); err != nil && !errors.Is(err, io.EOF) {
		s.metrics.rejected()
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	if err := rec.Validate(); err != nil {
		s.metrics.rejected()
		writeError(w, http.StatusBadRequest, ErrMissingCoordinates.Message)
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode record.")
		return
	}

	s.metrics.received()
	sent := s.registry.Broadcast(r.Context(), payload)
	s.logger.DebugWithFields("Record broadcast", map[string]interface{}{
		"lat":       string(rec.Lat),
		"lon":       string(rec.Lon),
		"listeners": sent,
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, ackMessage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"listeners": s.registry.Len(),
	})
}

// originPatterns returns the configured origins, or every origin when none
// are set
func (s *Server) originPatterns() []string {
	if len(s.config.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.config.AllowedOrigins
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		// Accept has already written the error response
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	id := fmt.Sprintf("ws-%d", s.nextID.Add(1))
	l := newWSListener(id, conn, s.config.WriteTimeout)
	s.registry.Add(l)

	// Listeners only receive; block until the peer goes away or the server stops
	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()

	if s.registry.Remove(id) {
		l.Close("")
	}
}

// requestLogger logs each request once it completes
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusSwitchingProtocols
		}
		logger.LogRequest(s.logger.WithField("request_id", middleware.GetReqID(r.Context())),
			r.Method, r.URL.Path, status, time.Since(start))
	})
}

// recoverer turns handler panics into JSON 500 responses
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				s.logger.ErrorWithFields("Handler panic", map[string]interface{}{
					"panic": fmt.Sprint(rv),
					"path":  r.URL.Path,
				})
				writeError(w, http.StatusInternalServerError, "Internal server error.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
