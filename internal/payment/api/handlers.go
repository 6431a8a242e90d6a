package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/checkout-saga/internal/httpio"
	"github.com/warp/checkout-saga/internal/payment"
	"github.com/warp/checkout-saga/internal/wal"
)

// Handler holds the Payment service's dependencies.
type Handler struct {
	Service *payment.Service
	Logs    *wal.LogStore
	Sweeper *wal.Sweeper
	Log     *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(svc *payment.Service, logs *wal.LogStore, sweeper *wal.Sweeper, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Logs: logs, Sweeper: sweeper, Log: log}
}

type userDTO struct {
	ID     string    `json:"id"`
	Credit wal.Money `json:"credit"`
}

func toUserDTO(user payment.User) userDTO {
	return userDTO{ID: user.ID, Credit: user.Credit}
}

type createUserRequest struct {
	Credit wal.Money `json:"credit"`
}

// CreateUser handles POST /payment/user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	user, err := h.Service.CreateUser(r.Context(), req.Credit)
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusCreated, toUserDTO(user))
}

// FindUser handles GET /payment/user/{id}.
func (h *Handler) FindUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	correlation := r.URL.Query().Get("log_id")

	user, err := h.Service.FindUser(r.Context(), userID, correlation)
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, toUserDTO(user))
}

type amountRequest struct {
	Amount wal.Money `json:"amount"`
}

// AddFunds handles POST /payment/user/{id}/add.
func (h *Handler) AddFunds(w http.ResponseWriter, r *http.Request) {
	h.mutateCredit(w, r, false)
}

// Pay handles POST /payment/user/{id}/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	h.mutateCredit(w, r, true)
}

func (h *Handler) mutateCredit(w http.ResponseWriter, r *http.Request, pay bool) {
	userID := chi.URLParam(r, "id")
	correlation := r.URL.Query().Get("log_id")

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var err error
	if pay {
		err = h.Service.Pay(r.Context(), userID, req.Amount, correlation)
	} else {
		err = h.Service.AddFunds(r.Context(), userID, req.Amount, correlation)
	}
	if err != nil {
		httpio.WriteAPIError(w, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetLog handles GET /payment/log/{logID}.
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

// ListLogs handles GET /payment/logs.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Logs.ListAll(r.Context())
	if err != nil {
		httpio.WriteError(w, http.StatusInternalServerError, "failed to list logs", err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, recs)
}

// FaultTolerance handles GET /payment/fault_tolerance/{min_diff}, the
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
