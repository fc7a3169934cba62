// Package payout executes reward payouts end to end: request validation,
// treasury solvency checks, transfer plan assembly, and submission through
// the chain gateway. One request in, one definitive outcome out.
package payout

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/google/uuid"

	"github.com/cookingcrypto/backend/api/metrics"
	"github.com/cookingcrypto/backend/chain"
)

// Kind selects which asset a payout moves.
type Kind string

const (
	// KindNative moves a fixed quantity of SOL.
	KindNative Kind = "native"
	// KindToken moves a computed quantity of the configured token, creating
	// the recipient's associated token account first when needed.
	KindToken Kind = "token"
)

// Request is one caller-supplied payout request.
type Request struct {
	Kind      Kind
	Recipient string
	// SolAmount is the SOL quantity being converted, token payouts only.
	SolAmount float64
}

// Gateway is the engine's view of the ledger. chain.Client satisfies it; tests
// substitute fakes.
type Gateway interface {
	NativeBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	TokenAccountExists(ctx context.Context, ata solana.PublicKey) (bool, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SubmitAndConfirm(ctx context.Context, plan chain.TransferPlan, signer solana.PrivateKey) (solana.Signature, error)
}

type Config struct {
	Logger  *slog.Logger
	Gateway Gateway

	// Treasury is the signing key controlling the treasury account. Loaded
	// once at startup, shared read-only across concurrent requests, never
	// logged.
	Treasury solana.PrivateKey

	// Mint identifies the token paid out by KindToken requests.
	Mint solana.PublicKey

	NativeAmountLamports uint64
	// FeeMarginLamports pads the native solvency check so the transfer fee
	// cannot tip the treasury below zero.
	FeeMarginLamports uint64
	TokensPerSol      uint64
	TokenDecimals     uint8
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Gateway == nil {
		return errors.New("chain gateway is required")
	}
	if len(cfg.Treasury) != 64 {
		return errors.New("treasury signing key is required")
	}
	if cfg.NativeAmountLamports == 0 {
		cfg.NativeAmountLamports = 50_000_000 // 0.05 SOL
	}
	if cfg.FeeMarginLamports == 0 {
		cfg.FeeMarginLamports = 1_000_000 // 0.001 SOL
	}
	if cfg.TokensPerSol == 0 {
		cfg.TokensPerSol = 100
	}
	if cfg.TokenDecimals == 0 {
		cfg.TokenDecimals = 6
	}
	return nil
}

// Engine executes payout requests. Stateless between requests: every request
// gets a fresh transfer plan and the engine retains no record of attempts.
// There is no idempotency dedup; a caller retry after an ambiguous outcome
// can pay twice.
type Engine struct {
	log      *slog.Logger
	cfg      Config
	gw       Gateway
	treasury solana.PublicKey
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:      cfg.Logger,
		cfg:      cfg,
		gw:       cfg.Gateway,
		treasury: cfg.Treasury.PublicKey(),
	}, nil
}

// Execute runs one payout to completion and returns its terminal outcome.
// Request-shape validation happens before any network call; a failed
// submission is never retried here since the engine keeps no attempt ledger.
func (e *Engine) Execute(ctx context.Context, req Request) Outcome {
	log := e.log.With("attempt", uuid.NewString(), "kind", string(req.Kind))

	recipient, err := solana.PublicKeyFromBase58(strings.TrimSpace(req.Recipient))
	if err != nil {
		log.Warn("payout/engine: rejected malformed recipient address")
		return Outcome{Status: StatusInvalidRequest, Detail: "recipient is not a valid solana address"}
	}
	log = log.With("recipient", recipient.String())

	switch req.Kind {
	case KindNative:
		return e.executeNative(ctx, log, recipient)
	case KindToken:
		if math.IsNaN(req.SolAmount) || math.IsInf(req.SolAmount, 0) || req.SolAmount <= 0 {
			log.Warn("payout/engine: rejected non-positive sol amount", "solAmount", req.SolAmount)
			return Outcome{Status: StatusInvalidRequest, Detail: "solAmount must be a finite number greater than zero"}
		}
		return e.executeToken(ctx, log, recipient, req.SolAmount)
	default:
		return Outcome{Status: StatusInvalidRequest, Detail: "unknown payout kind"}
	}
}

func (e *Engine) executeNative(ctx context.Context, log *slog.Logger, recipient solana.PublicKey) Outcome {
	amount := e.cfg.NativeAmountLamports

	balance, err := e.gw.NativeBalance(ctx, e.treasury)
	if err != nil {
		return e.outcomeFromError(log, err)
	}
	metrics.TreasuryLamports.Set(float64(balance))
	// Fast-path check only: the submission itself is authoritative, a
	// concurrent spend can still drain the treasury between here and there.
	if balance < amount+e.cfg.FeeMarginLamports {
		log.Error("payout/engine: treasury cannot cover native payout",
			"balance", balance, "required", amount+e.cfg.FeeMarginLamports)
		return Outcome{Status: StatusInsufficientFunds, Detail: "treasury balance cannot cover the payout"}
	}

	blockhash, err := e.gw.LatestBlockhash(ctx)
	if err != nil {
		return e.outcomeFromError(log, err)
	}

	plan := chain.TransferPlan{
		FeePayer:  e.treasury,
		Blockhash: blockhash,
		Instructions: []solana.Instruction{
			system.NewTransferInstruction(amount, e.treasury, recipient).Build(),
		},
	}
	sig, err := e.gw.SubmitAndConfirm(ctx, plan, e.cfg.Treasury)
	if err != nil {
		// The signature survives into the failure outcome so an ambiguous
		// confirmation can be reconciled against the ledger later.
		out := e.outcomeFromError(log, err)
		out.Signature = sig
		return out
	}

	log.Info("payout/engine: native payout confirmed", "lamports", amount, "signature", sig.String())
	return Outcome{Status: StatusSuccess, Signature: sig}
}

func (e *Engine) executeToken(ctx context.Context, log *slog.Logger, recipient solana.PublicKey, solAmount float64) Outcome {
	if e.cfg.Mint.IsZero() {
		log.Error("payout/engine: token payout requested but no mint configured")
		return Outcome{Status: StatusSubmissionFailure, Detail: "token mint is not configured"}
	}

	baseUnits := TokenBaseUnits(solAmount, e.cfg.TokensPerSol, e.cfg.TokenDecimals)
	if baseUnits == 0 {
		return Outcome{Status: StatusInvalidRequest, Detail: "computed token amount is zero"}
	}

	treasuryATA, _, err := solana.FindAssociatedTokenAddress(e.treasury, e.cfg.Mint)
	if err != nil {
		return Outcome{Status: StatusSubmissionFailure, Detail: "cannot derive treasury token account"}
	}
	recipientATA, _, err := solana.FindAssociatedTokenAddress(recipient, e.cfg.Mint)
	if err != nil {
		return Outcome{Status: StatusInvalidRequest, Detail: "cannot derive recipient token account"}
	}

	balance, err := e.gw.TokenBalance(ctx, e.treasury, e.cfg.Mint)
	if err != nil {
		return e.outcomeFromError(log, err)
	}
	if balance < baseUnits {
		log.Error("payout/engine: treasury cannot cover token payout",
			"balance", balance, "required", baseUnits)
		return Outcome{Status: StatusInsufficientFunds, Detail: "treasury token balance cannot cover the payout"}
	}

	exists, err := e.gw.TokenAccountExists(ctx, recipientATA)
	if err != nil {
		return e.outcomeFromError(log, err)
	}

	// Account creation and transfer ride in the same atomic submission:
	// either both apply or neither does.
	instructions := make([]solana.Instruction, 0, 2)
	if !exists {
		log.Info("payout/engine: recipient token account missing, creating", "ata", recipientATA.String())
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(e.treasury, recipient, e.cfg.Mint).Build())
	}
	instructions = append(instructions,
		token.NewTransferInstruction(baseUnits, treasuryATA, recipientATA, e.treasury, nil).Build())

	blockhash, err := e.gw.LatestBlockhash(ctx)
	if err != nil {
		return e.outcomeFromError(log, err)
	}

	plan := chain.TransferPlan{
		FeePayer:     e.treasury,
		Blockhash:    blockhash,
		Instructions: instructions,
	}
	sig, err := e.gw.SubmitAndConfirm(ctx, plan, e.cfg.Treasury)
	if err != nil {
		out := e.outcomeFromError(log, err)
		out.Signature = sig
		return out
	}

	tokensSent := WholeTokens(baseUnits, e.cfg.TokenDecimals)
	log.Info("payout/engine: token payout confirmed",
		"baseUnits", baseUnits, "tokens", tokensSent, "createdAccount", !exists, "signature", sig.String())
	return Outcome{Status: StatusSuccess, Signature: sig, TokensSent: tokensSent}
}

// outcomeFromError maps a classified gateway error onto a terminal outcome.
// Details stay free of endpoint URLs and key material.
func (e *Engine) outcomeFromError(log *slog.Logger, err error) Outcome {
	var netErr *chain.NetworkError
	var subErr *chain.SubmissionError
	switch {
	case errors.Is(err, chain.ErrInsufficientFunds):
		log.Error("payout/engine: ledger rejected payout for insufficient funds", "error", err)
		return Outcome{Status: StatusInsufficientFunds, Detail: "treasury balance cannot cover the payout"}
	case errors.As(err, &netErr):
		log.Error("payout/engine: network failure", "op", netErr.Op, "error", err)
		return Outcome{Status: StatusNetworkFailure, Detail: "network failure during " + netErr.Op}
	case errors.As(err, &subErr):
		log.Error("payout/engine: submission rejected", "error", err)
		return Outcome{Status: StatusSubmissionFailure, Detail: subErr.Detail}
	default:
		log.Error("payout/engine: submission failed", "error", err)
		return Outcome{Status: StatusSubmissionFailure, Detail: err.Error()}
	}
}
