// Package lottery implements the lottery ticket registry. Each distinct
// payment signature earns one ticket code; resubmitting the same signature
// returns the code already issued.
package lottery

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 5
)

// StoreConfig holds the lottery store configuration.
type StoreConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Pool == nil {
		return fmt.Errorf("pool is required")
	}
	return nil
}

// Store persists lottery tickets in PostgreSQL.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// NewStore creates a lottery ticket store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("game/lottery: invalid config: %w", err)
	}
	return &Store{log: cfg.Logger, pool: cfg.Pool}, nil
}

// Register issues a ticket for the given payment signature. If the signature
// was registered before, the previously issued code is returned and
// alreadyRegistered is true.
func (s *Store) Register(ctx context.Context, wallet, signature string) (code string, alreadyRegistered bool, err error) {
	if wallet == "" || signature == "" {
		return "", false, fmt.Errorf("game/lottery: wallet and signature are required")
	}

	code, err = newTicketCode()
	if err != nil {
		return "", false, err
	}

	// The insert loses the race to a concurrent duplicate, in which case the
	// fallback select finds the winner's code.
	err = s.pool.QueryRow(ctx, `
		INSERT INTO lottery_tickets (signature, wallet, code)
		VALUES ($1, $2, $3)
		ON CONFLICT (signature) DO NOTHING
		RETURNING code
	`, signature, wallet, code).Scan(&code)
	if err == nil {
		s.log.Info("game/lottery: ticket issued", "wallet", wallet, "code", code)
		return code, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("game/lottery: register ticket: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT code FROM lottery_tickets WHERE signature = $1
	`, signature).Scan(&code)
	if err != nil {
		return "", false, fmt.Errorf("game/lottery: look up existing ticket: %w", err)
	}
	return code, true, nil
}

// Count returns the number of tickets issued.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM lottery_tickets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("game/lottery: count tickets: %w", err)
	}
	return n, nil
}

// newTicketCode generates a 5-character code from A-Z0-9.
func newTicketCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("game/lottery: generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
