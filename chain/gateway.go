// Package chain wraps all interaction with the Solana ledger: RPC endpoint
// selection and failover, balance queries, block reference retrieval, and
// transaction submission with confirmation.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
)

// TransferPlan is one fully assembled transfer, built fresh per payout and
// never reused: replaying a plan would double-spend.
type TransferPlan struct {
	FeePayer     solana.PublicKey
	Instructions []solana.Instruction
	Blockhash    solana.Hash
}

type Config struct {
	Logger *slog.Logger

	// Endpoints is the ordered RPC endpoint candidate list. The first healthy
	// endpoint wins at construction; later transport failures rotate through
	// the rest.
	Endpoints []string

	Commitment solanarpc.CommitmentType
	Clock      clockwork.Clock

	HealthCheckTimeout  time.Duration
	BlockhashRetries    int
	BlockhashRetryDelay time.Duration
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Endpoints) == 0 {
		return errors.New("at least one rpc endpoint is required")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = solanarpc.CommitmentConfirmed
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = 5 * time.Second
	}
	if cfg.BlockhashRetries <= 0 {
		cfg.BlockhashRetries = 10
	}
	if cfg.BlockhashRetryDelay <= 0 {
		cfg.BlockhashRetryDelay = 500 * time.Millisecond
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	if cfg.ConfirmPollInterval <= 0 {
		cfg.ConfirmPollInterval = 2 * time.Second
	}
	return nil
}

// Client is the gateway to the Solana network. It is safe for concurrent use;
// all methods are reentrant and share one endpoint selection.
type Client struct {
	log   *slog.Logger
	cfg   Config
	clock clockwork.Clock

	mu      sync.Mutex
	current int
	rpc     *solanarpc.Client
}

// NewClient probes the configured endpoints in order and keeps the first
// healthy one. It fails only if no endpoint is reachable, which is fatal at
// startup; per-request failures later are reported as NetworkError instead.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		log:   cfg.Logger,
		cfg:   cfg,
		clock: cfg.Clock,
	}
	for i, url := range cfg.Endpoints {
		healthCtx, cancel := context.WithTimeout(ctx, cfg.HealthCheckTimeout)
		cl := solanarpc.New(url)
		health, err := cl.GetHealth(healthCtx)
		cancel()
		if err == nil && health == solanarpc.HealthOk {
			c.current = i
			c.rpc = cl
			c.log.Info("chain/gateway: using rpc endpoint", "url", url)
			return c, nil
		}
		c.log.Warn("chain/gateway: rpc endpoint unhealthy", "url", url, "error", err)
	}
	return nil, &NetworkError{Op: "resolve endpoint", Err: errors.New("no healthy rpc endpoint")}
}

// Endpoint returns the currently selected RPC endpoint URL.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Endpoints[c.current]
}

func (c *Client) client() *solanarpc.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rpc
}

// failover rotates to the next endpoint after a transport failure. The failed
// call itself is not retried; the next call uses the new endpoint.
func (c *Client) failover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cfg.Endpoints) == 1 {
		return
	}
	c.current = (c.current + 1) % len(c.cfg.Endpoints)
	url := c.cfg.Endpoints[c.current]
	c.rpc = solanarpc.New(url)
	c.log.Warn("chain/gateway: switching rpc endpoint", "url", url)
}

// NativeBalance returns the SOL balance of addr in lamports.
func (c *Client) NativeBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	out, err := c.client().GetBalance(ctx, addr, c.cfg.Commitment)
	if err != nil {
		c.failover()
		return 0, &NetworkError{Op: "get balance", Err: err}
	}
	return out.Value, nil
}

// TokenBalance returns owner's balance of the given mint in base units,
// resolving the associated token account deterministically. A token account
// that does not exist yet is a zero balance, not an error.
func (c *Client) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("derive associated token address: %w", err)
	}
	out, err := c.client().GetTokenAccountBalance(ctx, ata, c.cfg.Commitment)
	if err != nil {
		if isAccountNotFound(err) {
			return 0, nil
		}
		c.failover()
		return 0, &NetworkError{Op: "get token balance", Err: err}
	}
	if out.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token balance %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// TokenAccountExists reports whether the given token account exists on chain.
func (c *Client) TokenAccountExists(ctx context.Context, ata solana.PublicKey) (bool, error) {
	_, err := c.client().GetAccountInfo(ctx, ata)
	if err != nil {
		if errors.Is(err, solanarpc.ErrNotFound) {
			return false, nil
		}
		c.failover()
		return false, &NetworkError{Op: "get account info", Err: err}
	}
	return true, nil
}

// LatestBlockhash fetches the short-lived block reference that anchors a new
// transaction, retrying with linearly increasing delay. The bound exists
// because public RPC endpoints routinely drop this call under load.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.BlockhashRetries; attempt++ {
		out, err := c.client().GetLatestBlockhash(ctx, c.cfg.Commitment)
		if err == nil {
			return out.Value.Blockhash, nil
		}
		lastErr = err
		c.log.Warn("chain/gateway: blockhash fetch failed",
			"attempt", attempt, "retries", c.cfg.BlockhashRetries, "error", err)
		c.failover()
		if attempt < c.cfg.BlockhashRetries {
			select {
			case <-ctx.Done():
				return solana.Hash{}, &NetworkError{Op: "get latest blockhash", Err: ctx.Err()}
			case <-c.clock.After(time.Duration(attempt) * c.cfg.BlockhashRetryDelay):
			}
		}
	}
	return solana.Hash{}, &NetworkError{Op: "get latest blockhash", Err: lastErr}
}

// SubmitAndConfirm signs and submits the plan, then blocks until the ledger
// reports the transaction confirmed or rejected. The signature is returned
// even when confirmation fails, so callers can report what was attempted.
func (c *Client) SubmitAndConfirm(ctx context.Context, plan TransferPlan, signer solana.PrivateKey) (solana.Signature, error) {
	tx, err := solana.NewTransaction(plan.Instructions, plan.Blockhash, solana.TransactionPayer(plan.FeePayer))
	if err != nil {
		return solana.Signature{}, &SubmissionError{Detail: "build transaction", Err: err}
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, &SubmissionError{Detail: "sign transaction", Err: err}
	}

	sig, err := c.client().SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
		PreflightCommitment: c.cfg.Commitment,
	})
	if err != nil {
		classified := classifySubmitError(err)
		var netErr *NetworkError
		if errors.As(classified, &netErr) {
			c.failover()
		}
		return solana.Signature{}, classified
	}
	c.log.Info("chain/gateway: transaction submitted", "signature", sig.String())

	if err := c.awaitConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// awaitConfirmation polls the signature status until the transaction is
// confirmed, rejected, or the ceiling elapses. Hitting the ceiling resolves
// to NetworkError: the on-chain state is unknown, and that ambiguity is
// reported rather than masked by waiting forever.
func (c *Client) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	deadline := c.clock.Now().Add(c.cfg.ConfirmTimeout)
	for {
		out, err := c.client().GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			c.log.Debug("chain/gateway: signature status poll failed", "signature", sig.String(), "error", err)
		} else if len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return classifyTransactionError(status.Err)
			}
			if status.ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized {
				c.log.Info("chain/gateway: transaction confirmed",
					"signature", sig.String(), "status", string(status.ConfirmationStatus))
				return nil
			}
		}

		if c.clock.Now().After(deadline) {
			return &NetworkError{
				Op:  "confirm transaction",
				Err: fmt.Errorf("no confirmation within %s, on-chain outcome unknown", c.cfg.ConfirmTimeout),
			}
		}
		select {
		case <-ctx.Done():
			return &NetworkError{Op: "confirm transaction", Err: ctx.Err()}
		case <-c.clock.After(c.cfg.ConfirmPollInterval):
		}
	}
}
