package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/configdoc"
	"github.com/tomek7667/devconsole/internal/metrics"
	"github.com/tomek7667/devconsole/internal/rescache"
	"go.uber.org/zap"
)

type Options struct {
	// Host defaults to 127.0.0.1. Any other address exposes the API,
	// which has no authentication, to the network.
	Host           string
	Port           int
	Invoker        backend.Invoker
	Cache          *rescache.Cache
	Loading        *rescache.Loading
	SessionLimit   int
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	Version        string
	Logger         *zap.Logger
}

type Server struct {
	host     string
	port     int
	version  string
	inv      backend.Invoker
	cache    *rescache.Cache
	loading  *rescache.Loading
	editor   *configdoc.Editor
	sessions *sessionStore
	log      *zap.Logger
	r        *chi.Mux
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = rescache.New(opts.Invoker, rescache.Options{Logger: opts.Logger})
	}
	if opts.Loading == nil {
		opts.Loading = rescache.NewLoading()
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}
	s := &Server{
		host:     opts.Host,
		port:     opts.Port,
		version:  opts.Version,
		inv:      opts.Invoker,
		cache:    opts.Cache,
		loading:  opts.Loading,
		editor:   configdoc.NewEditor(opts.Invoker),
		sessions: newSessionStore(opts.SessionLimit, opts.SessionTTL),
		log:      opts.Logger,
		r:        chi.NewRouter(),
	}
	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(newRequestLogger(opts.Logger, "/healthz", "/metrics"))
	s.r.Use(middleware.Recoverer)
	s.r.Use(middleware.Timeout(opts.RequestTimeout))

	s.r.Get("/healthz", s.handleHealth)
	s.r.Handle("/metrics", metrics.Handler())
	s.addIndexRoute()
	s.r.Route("/api", func(r chi.Router) {
		r.Use(sameOriginOnly(isLoopback(opts.Host)))
		s.addResourceRoutes(r)
		s.addActionRoutes(r)
		s.addConfigRoutes(r)
		s.addDiskRoutes(r)
		s.addInvokeRoute(r)
	})
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}

// Serve listens until ctx is done or the process receives SIGINT/SIGTERM,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.host, strconv.Itoa(s.port)),
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	if !isLoopback(s.host) {
		s.log.Warn("API is reachable from the network without authentication", zap.String("host", s.host))
	}
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.purge()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}
