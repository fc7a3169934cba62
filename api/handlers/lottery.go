package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cookingcrypto/backend/api/metrics"
)

// LotteryStore is the ticket registry surface the handler needs.
type LotteryStore interface {
	Register(ctx context.Context, wallet, signature string) (code string, alreadyRegistered bool, err error)
	Count(ctx context.Context) (int, error)
}

// LotteryHandler serves the lottery ticket endpoints.
type LotteryHandler struct {
	log   *slog.Logger
	store LotteryStore
}

// NewLotteryHandler creates the lottery endpoints handler.
func NewLotteryHandler(log *slog.Logger, store LotteryStore) *LotteryHandler {
	return &LotteryHandler{log: log, store: store}
}

type lotteryAddRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
}

// Add handles POST /api/lottery/add.
func (h *LotteryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req lotteryAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Wallet == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "wallet and signature are required")
		return
	}

	code, existing, err := h.store.Register(r.Context(), req.Wallet, req.Signature)
	if err != nil {
		h.log.Error("api: lottery registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failure", "could not register ticket")
		return
	}
	if !existing {
		metrics.LotteryTicketsTotal.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"code":              code,
		"alreadyRegistered": existing,
	})
}

// Count handles GET /api/lottery/count.
func (h *LotteryHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.log.Error("api: lottery count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failure", "could not count tickets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}
