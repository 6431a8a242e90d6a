package api

import (
	"net/http"

	"github.com/warp/checkout-saga/internal/httpio"
	"github.com/warp/checkout-saga/internal/idservice"
	"go.uber.org/zap"
)

// Handler holds the ID service's dependencies.
type Handler struct {
	Service *idservice.Service
	Log     *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(svc *idservice.Service, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Log: log}
}

type createIDResponse struct {
	Key string `json:"key"`
}

// CreateID mints and returns a new key.
func (h *Handler) CreateID(w http.ResponseWriter, r *http.Request) {
	key := h.Service.CreateID()
	h.Log.Debug("minted id", zap.String("key", key))
	httpio.WriteJSON(w, http.StatusOK, createIDResponse{Key: key})
}
