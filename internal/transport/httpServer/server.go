package httpServer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/transport/httpServer/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// NewRouter serves the portfolio status endpoints. A nil metricsHandler
// leaves /metrics unrouted.
func NewRouter(ctrl *Controller, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", ctrl.Health)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Get("/summary", ctrl.FullInfo)
	r.Get("/summary/totals", ctrl.Summary)
	r.Post("/refresh", ctrl.Refresh)
	r.Get("/report", ctrl.Report)

	r.Route("/holdings", func(r chi.Router) {
		r.Post("/", ctrl.AddHolding)
		r.Get("/{symbol}", ctrl.Holding)
		r.Delete("/{symbol}", ctrl.RemoveHolding)
	})

	return r
}

type Server struct {
	srv *http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}}
}

func (s *Server) Start() {
	go func() {
		slog.Info("http server started", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.String("err", err.Error()))
		}
	}()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", slog.String("err", err.Error()))
	}
}
