package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cookingcrypto/backend/api/metrics"
	"github.com/cookingcrypto/backend/payout"
)

// PayoutExecutor runs a payout attempt. Satisfied by *payout.Engine.
type PayoutExecutor interface {
	Execute(ctx context.Context, req payout.Request) payout.Outcome
}

// PayoutHandler serves the reward and presale payout endpoints.
type PayoutHandler struct {
	log      *slog.Logger
	engine   PayoutExecutor
	validate *validator.Validate
}

// NewPayoutHandler creates the payout endpoints handler.
func NewPayoutHandler(log *slog.Logger, engine PayoutExecutor) *PayoutHandler {
	return &PayoutHandler{
		log:      log,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type rewardRequest struct {
	RecipientAddress string `json:"recipientAddress"`
	// WinnerAddress is the legacy field name still sent by older game clients.
	WinnerAddress string `json:"winnerAddress"`
}

type presaleRequest struct {
	Wallet    string  `json:"wallet" validate:"required"`
	SolAmount float64 `json:"solAmount" validate:"required,gt=0"`
}

// Reward handles POST /payout: a fixed native SOL reward to the given winner.
func (h *PayoutHandler) Reward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(payout.StatusInvalidRequest), "invalid JSON body")
		return
	}

	recipient := req.RecipientAddress
	if recipient == "" {
		recipient = req.WinnerAddress
	}
	if recipient == "" {
		writeError(w, http.StatusBadRequest, string(payout.StatusInvalidRequest), "recipientAddress is required")
		return
	}

	h.run(w, r, payout.Request{Kind: payout.KindNative, Recipient: recipient})
}

// Presale handles POST /presale-payout: token delivery proportional to the
// SOL amount the buyer paid.
func (h *PayoutHandler) Presale(w http.ResponseWriter, r *http.Request) {
	var req presaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(payout.StatusInvalidRequest), "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, string(payout.StatusInvalidRequest), err.Error())
		return
	}

	h.run(w, r, payout.Request{Kind: payout.KindToken, Recipient: req.Wallet, SolAmount: req.SolAmount})
}

func (h *PayoutHandler) run(w http.ResponseWriter, r *http.Request, req payout.Request) {
	start := time.Now()
	outcome := h.engine.Execute(r.Context(), req)
	metrics.RecordPayout(string(req.Kind), string(outcome.Status), time.Since(start))

	switch outcome.Status {
	case payout.StatusSuccess:
		resp := map[string]any{
			"success": true,
			"txid":    outcome.Signature.String(),
		}
		if req.Kind == payout.KindToken {
			resp["tokensSent"] = outcome.TokensSent
		}
		writeJSON(w, http.StatusOK, resp)
	case payout.StatusInvalidRequest:
		writeError(w, http.StatusBadRequest, string(outcome.Status), outcome.Detail)
	default:
		resp := map[string]any{
			"success": false,
			"error":   string(outcome.Status),
			"detail":  outcome.Detail,
		}
		// A submission that reached the ledger carries its signature even on
		// failure so the caller can reconcile the attempt.
		if !outcome.Signature.IsZero() {
			resp["txid"] = outcome.Signature.String()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}
