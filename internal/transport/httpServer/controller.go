package httpServer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/portfolio"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/go-chi/chi/v5"
)

type TrackerService interface {
	FullInfo(ctx context.Context) (model.PortfolioFullInfo, error)
	Summary(ctx context.Context) (model.PortfolioSummary, error)
	Holding(ctx context.Context, symbol string) (model.HoldingSummary, error)
	AddHolding(ctx context.Context, symbol string, quantity, costPerShare float64) error
	RemoveHolding(ctx context.Context, symbol string) error
	Refresh(ctx context.Context) (removed []string, err error)
	Report(ctx context.Context) (fileBytes []byte, fileExtension string, err error)
}

type Controller struct {
	trackerService TrackerService
}

func NewController(trackerService TrackerService) *Controller {
	return &Controller{trackerService: trackerService}
}

type addHoldingRequest struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	CostPerShare float64 `json:"cost_per_share"`
}

type refreshResponse struct {
	Removed []string               `json:"removed"`
	Summary model.PortfolioSummary `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (ctrl *Controller) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ctrl *Controller) FullInfo(w http.ResponseWriter, r *http.Request) {
	info, err := ctrl.trackerService.FullInfo(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, info)
}

func (ctrl *Controller) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := ctrl.trackerService.Summary(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, summary)
}

func (ctrl *Controller) Holding(w http.ResponseWriter, r *http.Request) {
	h, err := ctrl.trackerService.Holding(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, h)
}

func (ctrl *Controller) AddHolding(w http.ResponseWriter, r *http.Request) {
	var req addHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := ctrl.trackerService.AddHolding(r.Context(), req.Symbol, req.Quantity, req.CostPerShare); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	h, err := ctrl.trackerService.Holding(r.Context(), req.Symbol)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusCreated, h)
}

func (ctrl *Controller) RemoveHolding(w http.ResponseWriter, r *http.Request) {
	if err := ctrl.trackerService.RemoveHolding(r.Context(), chi.URLParam(r, "symbol")); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ctrl *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	removed, err := ctrl.trackerService.Refresh(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	summary, err := ctrl.trackerService.Summary(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	if removed == nil {
		removed = []string{}
	}
	respondJSON(r.Context(), w, http.StatusOK, refreshResponse{Removed: removed, Summary: summary})
}

func (ctrl *Controller) Report(w http.ResponseWriter, r *http.Request) {
	fileBytes, fileExtension, err := ctrl.trackerService.Report(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	filename := fmt.Sprintf("portfolio_%s%s", time.Now().UTC().Format("2006-01-02"), fileExtension)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(fileBytes)
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNotFound), errors.Is(err, portfolio.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, portfolio.ErrInvalidSymbol), errors.Is(err, portfolio.ErrInvalidLot):
		return http.StatusBadRequest
	case errors.Is(err, portfolio.ErrSymbolUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		respondJSON(ctx, w, status, errorResponse{Error: "internal error"})
		return
	}
	respondJSON(ctx, w, status, errorResponse{Error: err.Error()})
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
}
