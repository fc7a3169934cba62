package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/cookingcrypto/backend/game/ranking"
)

// RankingStore is the leaderboard surface the handler needs.
type RankingStore interface {
	Upsert(ctx context.Context, address, username string) error
	AddShopping(ctx context.Context, address string, points float64) error
	Top(ctx context.Context, limit int) ([]ranking.Entry, error)
	RefreshBalances(ctx context.Context, src ranking.BalanceSource, mint solana.PublicKey, decimals uint8) error
}

// RankingHandler serves the leaderboard endpoints.
type RankingHandler struct {
	log      *slog.Logger
	store    RankingStore
	balances ranking.BalanceSource
	mint     solana.PublicKey
	decimals uint8
}

// NewRankingHandler creates the leaderboard endpoints handler.
func NewRankingHandler(log *slog.Logger, store RankingStore, balances ranking.BalanceSource, mint solana.PublicKey, decimals uint8) *RankingHandler {
	return &RankingHandler{log: log, store: store, balances: balances, mint: mint, decimals: decimals}
}

// Get handles GET /ranking.
func (h *RankingHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := h.store.Top(r.Context(), limit)
	if err != nil {
		h.log.Error("api: ranking query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failure", "could not load ranking")
		return
	}
	if entries == nil {
		entries = []ranking.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type rankingUpsertRequest struct {
	Address  string `json:"address"`
	Username string `json:"username"`
}

// Upsert handles POST /ranking.
func (h *RankingHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req rankingUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.store.Upsert(r.Context(), req.Address, req.Username); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type shoppingRequest struct {
	Address string  `json:"address"`
	Points  float64 `json:"points"`
}

// Shopping handles POST /shopping.
func (h *RankingHandler) Shopping(w http.ResponseWriter, r *http.Request) {
	var req shoppingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.store.AddShopping(r.Context(), req.Address, req.Points); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Refresh handles POST /refresh-balances.
func (h *RankingHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RefreshBalances(r.Context(), h.balances, h.mint, h.decimals); err != nil {
		h.log.Error("api: balance refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failure", "balance refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
