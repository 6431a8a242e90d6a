package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/checkout-saga/internal/httpio"
	"github.com/warp/checkout-saga/internal/stock"
	"github.com/warp/checkout-saga/internal/wal"
)

// Handler holds the Stock service's dependencies.
type Handler struct {
	Service *stock.Service
	Logs    *wal.LogStore
	Sweeper *wal.Sweeper
	Log     *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(svc *stock.Service, logs *wal.LogStore, sweeper *wal.Sweeper, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Logs: logs, Sweeper: sweeper, Log: log}
}

type itemDTO struct {
	ID    string    `json:"id"`
	Stock int64     `json:"stock"`
	Price wal.Money `json:"price"`
}

func toItemDTO(item stock.Item) itemDTO {
	return itemDTO{ID: item.ID, Stock: item.Stock, Price: item.Price}
}

type createItemRequest struct {
	Price wal.Money `json:"price"`
}

// CreateItem handles POST /stock/item.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	item, err := h.Service.CreateItem(r.Context(), req.Price)
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusCreated, toItemDTO(item))
}

// FindItem handles GET /stock/item/{id}.
func (h *Handler) FindItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	correlation := r.URL.Query().Get("log_id")

	item, err := h.Service.FindItem(r.Context(), itemID, correlation)
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, toItemDTO(item))
}

// AddStock handles POST /stock/item/{id}/add/{amount}.
func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	h.mutateStock(w, r, false)
}

// SubtractStock handles POST /stock/item/{id}/subtract/{amount}.
func (h *Handler) SubtractStock(w http.ResponseWriter, r *http.Request) {
	h.mutateStock(w, r, true)
}

func (h *Handler) mutateStock(w http.ResponseWriter, r *http.Request, subtract bool) {
	itemID := chi.URLParam(r, "id")
	amount, err := strconv.ParseInt(chi.URLParam(r, "amount"), 10, 64)
	if err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	correlation := r.URL.Query().Get("log_id")

	if subtract {
		err = h.Service.SubtractStock(r.Context(), itemID, amount, correlation)
	} else {
		err = h.Service.AddStock(r.Context(), itemID, amount, correlation)
	}
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetLog handles GET /stock/log/{logID} (supplemented per SPEC_FULL.md §4,
// grounded on original_source/stock/app.py's find_log).
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "logID")
	rec, ok, err := h.Logs.Get(r.Context(), key)
	if err != nil {
		httpio.WriteError(w, http.StatusInternalServerError, "failed to read log", err)
		return
	}
	if !ok {
		httpio.WriteError(w, http.StatusNotFound, "log not found", nil)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, rec)
}

// ListLogs handles GET /stock/logs (supplemented per SPEC_FULL.md §4).
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Logs.ListAll(r.Context())
	if err != nil {
		httpio.WriteError(w, http.StatusInternalServerError, "failed to list logs", err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, recs)
}

// FaultTolerance handles GET /stock/fault_tolerance/{min_diff}, the on-demand
// sweep trigger of spec.md §4.5: run recovery now against every group older
// than min_diff minutes, instead of waiting for the next background tick.
func (h *Handler) FaultTolerance(w http.ResponseWriter, r *http.Request) {
	minDiff, err := strconv.ParseInt(chi.URLParam(r, "min_diff"), 10, 64)
	if err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid min_diff", err)
		return
	}

	if err := h.Sweeper.RunWithWindow(r.Context(), time.Duration(minDiff)*time.Minute); err != nil {
		httpio.WriteError(w, http.StatusInternalServerError, "sweep failed", err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
