package server

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/fxnlabs/kernel-jit/internal/config"
	"github.com/fxnlabs/kernel-jit/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the warmer and the HTTP server into an fx app. The app must
// also provide *config.Config, *zap.Logger and *jit.RuntimeCache.
var Module = fx.Module("server",
	fx.Provide(
		NewWarmer,
		NewMux,
		NewServer,
	),
	// Hooks stop in reverse order: the server shuts down before the
	// runtimes are unloaded.
	fx.Invoke(registerWarmer),
	fx.Invoke(func(*Server) {}),
)

func registerWarmer(lc fx.Lifecycle, w *Warmer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return w.Warm() },
		OnStop:  func(context.Context) error { return w.Close() },
	})
}

type runtimeStatus struct {
	Path   string `json:"path"`
	Kernel string `json:"kernel"`
	Loaded bool   `json:"loaded"`
}

type health struct {
	Status   string          `json:"status"`
	Runtimes []runtimeStatus `json:"runtimes"`
}

// NewMux serves /metrics and /healthz.
func NewMux(w *Warmer, logger *zap.Logger) *http.ServeMux {
	log := logger.Named("http")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Middleware(promhttp.Handler(), "/metrics"))
	mux.Handle("/healthz", metrics.Middleware(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		h := health{Status: "ok", Runtimes: []runtimeStatus{}}
		for _, rt := range w.Runtimes() {
			h.Runtimes = append(h.Runtimes, runtimeStatus{Path: rt.Path(), Kernel: rt.KernelName(), Loaded: rt.Loaded()})
			if !rt.Loaded() {
				h.Status = "degraded"
			}
		}
		status := http.StatusOK
		if h.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(status)
		if err := json.NewEncoder(rw).Encode(h); err != nil {
			log.Error("Failed to write health response", zap.Error(err))
		}
	}), "/healthz"))
	return mux
}

// Server is the monitoring HTTP server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger

	mu   sync.Mutex
	addr string
}

// NewServer registers lifecycle hooks that listen on serve.listenAddress at
// start and shut down gracefully at stop.
func NewServer(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux, logger *zap.Logger) *Server {
	addr := cfg.Serve.ListenAddress
	if addr == "" {
		addr = config.DefaultListenAddress
	}
	s := &Server{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger.Named("http"),
	}
	lc.Append(fx.Hook{
		OnStart: s.start,
		OnStop:  s.srv.Shutdown,
	})
	return s
}

func (s *Server) start(context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("Starting server on", zap.String("address", s.Addr()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the address the server listens on, empty before start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
