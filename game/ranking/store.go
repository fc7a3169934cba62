// Package ranking implements the wallet leaderboard: one row per player,
// scored from on-chain token balance and in-game shopping points.
package ranking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/cookingcrypto/backend/utils/pkg/retry"
)

// Score weighting: shopping points count 2.2x relative to held balance.
const shoppingWeight = 2.2

// Entry is one leaderboard row.
type Entry struct {
	Address  string  `json:"address"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
	Shopping float64 `json:"shopping"`
	Score    float64 `json:"score"`
}

// BalanceSource yields on-chain token balances for leaderboard refresh.
type BalanceSource interface {
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
}

// StoreConfig holds the leaderboard store configuration.
type StoreConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	// RefreshConcurrency bounds parallel balance lookups during a refresh.
	RefreshConcurrency int
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Pool == nil {
		return fmt.Errorf("pool is required")
	}
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = 4
	}
	return nil
}

// Store persists leaderboard rows in PostgreSQL.
type Store struct {
	log  *slog.Logger
	cfg  StoreConfig
	pool *pgxpool.Pool
}

// NewStore creates a leaderboard store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("game/ranking: invalid config: %w", err)
	}
	return &Store{log: cfg.Logger, cfg: cfg, pool: cfg.Pool}, nil
}

// Upsert registers a player, updating the username if the row exists.
func (s *Store) Upsert(ctx context.Context, address, username string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("game/ranking: invalid address %q: %w", address, err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ranking (address, username)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET username = EXCLUDED.username, updated_at = now()
	`, address, username)
	if err != nil {
		return fmt.Errorf("game/ranking: upsert %s: %w", address, err)
	}
	return nil
}

// AddShopping increments a player's shopping points, creating the row if needed.
func (s *Store) AddShopping(ctx context.Context, address string, points float64) error {
	if points <= 0 {
		return fmt.Errorf("game/ranking: shopping points must be positive")
	}
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("game/ranking: invalid address %q: %w", address, err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ranking (address, shopping)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET shopping = ranking.shopping + EXCLUDED.shopping, updated_at = now()
	`, address, points)
	if err != nil {
		return fmt.Errorf("game/ranking: add shopping for %s: %w", address, err)
	}
	return nil
}

// Top returns the highest-scoring rows, score descending.
func (s *Store) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT address, username, balance, shopping, balance + $2 * shopping AS score
		FROM ranking
		ORDER BY score DESC
		LIMIT $1
	`, limit, shoppingWeight)
	if err != nil {
		return nil, fmt.Errorf("game/ranking: query top: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Address, &e.Username, &e.Balance, &e.Shopping, &e.Score); err != nil {
			return nil, fmt.Errorf("game/ranking: scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("game/ranking: iterate rows: %w", err)
	}
	return entries, nil
}

// RefreshBalances re-reads every player's on-chain token balance and stores it
// as whole tokens. Individual lookup failures are logged and skipped so one
// bad address does not stall the whole refresh.
func (s *Store) RefreshBalances(ctx context.Context, src BalanceSource, mint solana.PublicKey, decimals uint8) error {
	rows, err := s.pool.Query(ctx, `SELECT address FROM ranking`)
	if err != nil {
		return fmt.Errorf("game/ranking: list addresses: %w", err)
	}
	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			rows.Close()
			return fmt.Errorf("game/ranking: scan address: %w", err)
		}
		addresses = append(addresses, addr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("game/ranking: iterate addresses: %w", err)
	}

	divisor := 1.0
	for i := uint8(0); i < decimals; i++ {
		divisor *= 10
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.RefreshConcurrency)
	for _, addr := range addresses {
		g.Go(func() error {
			owner, err := solana.PublicKeyFromBase58(addr)
			if err != nil {
				s.log.Warn("game/ranking: skipping unparseable address", "address", addr, "error", err)
				return nil
			}
			var baseUnits uint64
			err = retry.Do(gctx, retry.DefaultConfig(), func() error {
				var lookupErr error
				baseUnits, lookupErr = src.TokenBalance(gctx, owner, mint)
				return lookupErr
			})
			if err != nil {
				s.log.Warn("game/ranking: balance lookup failed", "address", addr, "error", err)
				return nil
			}
			_, err = s.pool.Exec(gctx, `
				UPDATE ranking SET balance = $2, updated_at = now() WHERE address = $1
			`, addr, float64(baseUnits)/divisor)
			if err != nil {
				return fmt.Errorf("game/ranking: store balance for %s: %w", addr, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Info("game/ranking: balances refreshed", "players", len(addresses))
	return nil
}
