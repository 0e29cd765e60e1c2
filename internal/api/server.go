package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"grimm.is/rtmirror/internal/brand"
	"grimm.is/rtmirror/internal/clock"
	"grimm.is/rtmirror/internal/events"
	"grimm.is/rtmirror/internal/health"
	"grimm.is/rtmirror/internal/logging"
	"grimm.is/rtmirror/internal/metrics"
	"grimm.is/rtmirror/internal/rtconf"
)

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration // Slowloris prevention
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// DefaultServerConfig returns secure default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB header limit
	}
}

// Mirror is the read side of rtconf.Mirror served by the API.
type Mirror interface {
	Routes() []rtconf.RouteEntry
	Addresses() []rtconf.AddressEntry
	Stats() rtconf.Stats
}

// ChurnSource answers churn history queries.
type ChurnSource interface {
	RecentChurn(d time.Duration) ([]events.ChurnPoint, error)
	HourlyChurn(days int) ([]events.ChurnPoint, error)
}

// Server handles API requests.
type Server struct {
	mirror    Mirror
	hub       *events.Hub
	churn     ChurnSource
	names     NameResolver
	health    *health.Checker
	logs      *logging.RingBuffer
	logger    *logging.Logger
	metrics   *metrics.Registry
	clock     clock.Clock
	wsManager *WSManager

	mux  *http.ServeMux
	http *http.Server
}

// ServerOptions holds dependencies for the API server
type ServerOptions struct {
	Mirror Mirror      // required
	Hub    *events.Hub // Optional: enables /api/events
	Churn  ChurnSource // Optional: enables /api/churn
	Names  NameResolver
	Health *health.Checker     // Optional: enables /api/health
	Logs   *logging.RingBuffer // Defaults to logging.GetRecentLogs()
	Logger *logging.Logger
	Clock  clock.Clock
}

// NewServer creates a new API server with the provided options
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Mirror == nil {
		return nil, errors.New("api: mirror is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("api")
	}
	logs := opts.Logs
	if logs == nil {
		logs = logging.GetRecentLogs()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real
	}

	s := &Server{
		mirror:  opts.Mirror,
		hub:     opts.Hub,
		churn:   opts.Churn,
		names:   opts.Names,
		health:  opts.Health,
		logs:    logs,
		logger:  logger,
		metrics: metrics.Get(),
		clock:   clk,
	}
	if opts.Hub != nil {
		s.wsManager = NewWSManager(opts.Hub, opts.Names, logger)
	}

	s.initRoutes()

	cfg := DefaultServerConfig()
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	return s, nil
}

// initRoutes initializes the HTTP router
func (s *Server) initRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/routes", s.handleRoutes)
	mux.HandleFunc("GET /api/addresses", s.handleAddresses)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/churn", s.handleChurn)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/brand", s.handleBrand)

	if s.health != nil {
		mux.HandleFunc("GET /api/health", s.health.Handler())
	}
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReadiness)

	s.mux = mux
}

// Handler returns the API handler with access logging applied.
func (s *Server) Handler() http.Handler {
	return s.accessLog(s.mux)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("API listening", "addr", ln.Addr().String())
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown closes websocket clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsManager != nil {
		s.wsManager.Close()
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleBrand(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, brand.Get())
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness reports ready once every initial dump has completed.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	st := s.mirror.Stats()
	if st.State != rtconf.StateRunning || !st.Synced {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":        "syncing",
			"state":         st.State,
			"pending_dumps": st.PendingDumps,
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
