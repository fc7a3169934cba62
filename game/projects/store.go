// Package projects implements the community project board: wallet-owned
// listings voted up or down, with a per-voter cooldown and automatic removal
// of heavily downvoted entries.
package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// Listings at or below this score are removed on the vote that takes
	// them there; Top never returns anything at or below it.
	deleteThreshold = -10

	voteCooldown = 3 * time.Hour
	topLimit     = 30
)

var (
	ErrDuplicate    = errors.New("game/projects: project already listed")
	ErrNotFound     = errors.New("game/projects: project not found")
	ErrVoteCooldown = errors.New("game/projects: voter is in cooldown")
)

// Project is one board listing.
type Project struct {
	Wallet  string `json:"wallet" validate:"required,min=32,max=44"`
	Ticker  string `json:"ticker" validate:"required,min=2,max=8,uppercase,alphanum"`
	Name    string `json:"name" validate:"required,min=3,max=120"`
	Website string `json:"website" validate:"omitempty,url,max=200"`
	Score   int    `json:"score"`
}

// StoreConfig holds the project board store configuration.
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

// Store persists project listings in PostgreSQL.
type Store struct {
	log      *slog.Logger
	pool     *pgxpool.Pool
	validate *validator.Validate
}

// NewStore creates a project board store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("game/projects: invalid config: %w", err)
	}
	return &Store{
		log:      cfg.Logger,
		pool:     cfg.Pool,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Add lists a new project. A wallet or ticker already on the board returns
// ErrDuplicate.
func (s *Store) Add(ctx context.Context, p Project) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("game/projects: invalid project: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (wallet, ticker, name, website)
		VALUES ($1, $2, $3, $4)
	`, p.Wallet, p.Ticker, p.Name, p.Website)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("game/projects: add %s: %w", p.Ticker, err)
	}
	s.log.Info("game/projects: project listed", "ticker", p.Ticker, "wallet", p.Wallet)
	return nil
}

// Top returns up to 30 listings above the delete threshold, score descending.
func (s *Store) Top(ctx context.Context) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wallet, ticker, name, website, score
		FROM projects
		WHERE score > $1
		ORDER BY score DESC, created_at ASC
		LIMIT $2
	`, deleteThreshold, topLimit)
	if err != nil {
		return nil, fmt.Errorf("game/projects: query top: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Wallet, &p.Ticker, &p.Name, &p.Website, &p.Score); err != nil {
			return nil, fmt.Errorf("game/projects: scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("game/projects: iterate rows: %w", err)
	}
	return out, nil
}

// Vote applies an up or down vote from the given voter to the project with
// the given ticker. A voter who voted on the project within the last 3 hours
// gets ErrVoteCooldown. A listing driven to the delete threshold is removed.
func (s *Store) Vote(ctx context.Context, ticker, voter string, up bool) (score int, err error) {
	if voter == "" {
		return 0, fmt.Errorf("game/projects: voter is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("game/projects: begin vote: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lastVote *time.Time
	err = tx.QueryRow(ctx, `
		SELECT score, (votes ->> $2)::timestamptz
		FROM projects
		WHERE ticker = $1
		FOR UPDATE
	`, ticker, voter).Scan(&score, &lastVote)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("game/projects: look up %s: %w", ticker, err)
	}

	if lastVote != nil && time.Since(*lastVote) < voteCooldown {
		return score, ErrVoteCooldown
	}

	delta := 1
	if !up {
		delta = -1
	}
	score += delta

	if score <= deleteThreshold {
		if _, err := tx.Exec(ctx, `DELETE FROM projects WHERE ticker = $1`, ticker); err != nil {
			return 0, fmt.Errorf("game/projects: delete %s: %w", ticker, err)
		}
		s.log.Info("game/projects: project removed by downvotes", "ticker", ticker, "score", score)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE projects
			SET score = $2, votes = votes || jsonb_build_object($3::text, now())
			WHERE ticker = $1
		`, ticker, score, voter)
		if err != nil {
			return 0, fmt.Errorf("game/projects: record vote on %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("game/projects: commit vote: %w", err)
	}
	return score, nil
}
