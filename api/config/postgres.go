package config

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var EmbedMigrations embed.FS

// PgPool is the global PostgreSQL connection pool
var PgPool *pgxpool.Pool

// PgConfig holds the PostgreSQL configuration
type PgConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
}

// LoadPostgres initializes the PostgreSQL connection pool
func LoadPostgres(log *slog.Logger) error {
	cfg := PgConfig{
		Host:     envOr("POSTGRES_HOST", "localhost"),
		Port:     envOr("POSTGRES_PORT", "5432"),
		Database: os.Getenv("POSTGRES_DB"),
		Username: os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
	}
	if cfg.Database == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.Username == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.Password == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	sslMode := envOr("POSTGRES_SSLMODE", "disable")

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode,
	)

	log.Info("config: connecting to PostgreSQL",
		"host", cfg.Host, "port", cfg.Port, "database", cfg.Database, "username", cfg.Username)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	PgPool = pool
	log.Info("config: connected to PostgreSQL")

	if os.Getenv("POSTGRES_RUN_MIGRATIONS") == "true" {
		if err := RunMigrations(log, connStr); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return nil
}

// RunMigrations runs database migrations using goose
func RunMigrations(log *slog.Logger, connStr string) error {
	log.Info("config: running PostgreSQL migrations")

	goose.SetBaseFS(EmbedMigrations)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("config: PostgreSQL migrations completed")
	return nil
}

// ClosePostgres closes the PostgreSQL connection pool
func ClosePostgres() {
	if PgPool != nil {
		PgPool.Close()
	}
}
