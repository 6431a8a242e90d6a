package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/checkout-saga/internal/httpio"
	"github.com/warp/checkout-saga/internal/order"
	"github.com/warp/checkout-saga/internal/wal"
)

// Handler holds the Order service's dependencies.
type Handler struct {
	Service *order.Service
	Logs    *wal.LogStore
	Sweeper *wal.Sweeper
	Log     *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(svc *order.Service, logs *wal.LogStore, sweeper *wal.Sweeper, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Logs: logs, Sweeper: sweeper, Log: log}
}

type lineDTO struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

type orderDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Paid      bool      `json:"paid"`
	Items     []lineDTO `json:"items"`
	TotalCost wal.Money `json:"total_cost"`
}

func toOrderDTO(o order.Order) orderDTO {
	lines := make([]lineDTO, len(o.Items))
	for i, line := range o.Items {
		lines[i] = lineDTO{ItemID: line.ItemID, Quantity: line.Quantity}
	}
	return orderDTO{ID: o.ID, UserID: o.UserID, Paid: o.Paid, Items: lines, TotalCost: o.TotalCost}
}

type createOrderRequest struct {
	UserID string `json:"user_id"`
}

// CreateOrder handles POST /orders/order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	o, err := h.Service.CreateOrder(r.Context(), req.UserID)
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusCreated, toOrderDTO(o))
}

// FindOrder handles GET /orders/order/{id}.
func (h *Handler) FindOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	correlation := r.URL.Query().Get("log_id")

	o, err := h.Service.FindOrder(r.Context(), orderID, correlation)
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, toOrderDTO(o))
}

// AddItem handles POST /orders/order/{id}/addItem/{itemID}/{amount}.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemID")
	correlation := r.URL.Query().Get("log_id")

	amount, err := strconv.ParseInt(chi.URLParam(r, "amount"), 10, 64)
	if err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	o, err := h.Service.AddItem(r.Context(), orderID, itemID, amount, correlation)
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, toOrderDTO(o))
}

// Checkout handles POST /orders/order/{id}/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if err := h.Service.Checkout(r.Context(), orderID); err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetLog handles GET /orders/log/{logID}.
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

// ListLogs handles GET /orders/logs.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Logs.ListAll(r.Context())
	if err != nil {
		httpio.WriteError(w, http.StatusInternalServerError, "failed to list logs", err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, recs)
}

// FaultTolerance handles GET /orders/fault_tolerance/{min_diff}, the
// on-demand sweep trigger of spec.md §4.5.
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
