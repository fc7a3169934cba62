package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/cookingcrypto/backend/api/config"
	"github.com/cookingcrypto/backend/api/handlers"
	"github.com/cookingcrypto/backend/api/metrics"
	"github.com/cookingcrypto/backend/api/server"
	"github.com/cookingcrypto/backend/chain"
	"github.com/cookingcrypto/backend/game/lottery"
	"github.com/cookingcrypto/backend/game/projects"
	"github.com/cookingcrypto/backend/game/ranking"
	"github.com/cookingcrypto/backend/keyvault"
	"github.com/cookingcrypto/backend/payout"
	"github.com/cookingcrypto/backend/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	envFileFlag := flag.String("env-file", ".env", "path to .env file (missing file is ignored)")
	portFlag := flag.String("port", "", "HTTP listen port (or set PORT env var)")
	refreshIntervalFlag := flag.Duration("balance-refresh-interval", 0, "leaderboard balance refresh interval (0 = disabled)")
	flag.Parse()

	log := logger.New(*verboseFlag)

	if err := godotenv.Load(*envFileFlag); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load env file: %w", err)
	}
	if *portFlag != "" {
		os.Setenv("PORT", *portFlag)
	}

	settings, err := config.Load()
	if err != nil {
		return err
	}

	if settings.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     settings.SentryDSN,
			Release: version,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(5 * time.Second)
	}

	handlers.SetBuildInfo(version, commit, date)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	treasury, err := loadTreasuryKey(settings)
	if err != nil {
		return err
	}
	log.Info("main: treasury key loaded", "address", treasury.PublicKey())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gateway, err := chain.NewClient(ctx, chain.Config{
		Logger:    log,
		Endpoints: settings.RPCEndpoints,
		Clock:     clockwork.NewRealClock(),
	})
	if err != nil {
		return err
	}
	log.Info("main: chain gateway ready", "endpoint", gateway.Endpoint())

	engine, err := payout.New(payout.Config{
		Logger:               log,
		Gateway:              gateway,
		Treasury:             treasury,
		Mint:                 settings.Mint,
		NativeAmountLamports: settings.RewardAmountLamports(),
		FeeMarginLamports:    settings.FeeMarginLamports(),
		TokensPerSol:         settings.TokensPerSol,
		TokenDecimals:        settings.TokenDecimals,
	})
	if err != nil {
		return err
	}

	if err := config.LoadPostgres(log); err != nil {
		return err
	}
	defer config.ClosePostgres()

	rankingStore, err := ranking.NewStore(ranking.StoreConfig{Logger: log, Pool: config.PgPool})
	if err != nil {
		return err
	}
	lotteryStore, err := lottery.NewStore(lottery.StoreConfig{Logger: log, Pool: config.PgPool})
	if err != nil {
		return err
	}
	projectsStore, err := projects.NewStore(projects.StoreConfig{Logger: log, Pool: config.PgPool})
	if err != nil {
		return err
	}

	if *refreshIntervalFlag > 0 {
		go refreshBalancesLoop(ctx, log, rankingStore, gateway, settings, *refreshIntervalFlag)
	}

	srv, err := server.New(server.Config{
		Logger:      log,
		Port:        settings.Port,
		CORSOrigins: settings.CORSOrigins,
		Payout:      handlers.NewPayoutHandler(log, engine),
		Ranking:     handlers.NewRankingHandler(log, rankingStore, gateway, settings.Mint, settings.TokenDecimals),
		Lottery:     handlers.NewLotteryHandler(log, lotteryStore),
		Projects:    handlers.NewProjectsHandler(log, projectsStore),
		Ready: func(ctx context.Context) error {
			return config.PgPool.Ping(ctx)
		},
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

// loadTreasuryKey decrypts the at-rest treasury key from the configured file
// or inline JSON blob.
func loadTreasuryKey(settings *config.Settings) (solana.PrivateKey, error) {
	if settings.EncryptedKeyJSON != "" {
		return keyvault.Decrypt([]byte(settings.EncryptedKeyJSON), settings.PrivateKeyPassword)
	}
	return keyvault.LoadFile(settings.EncryptedKeyFile, settings.PrivateKeyPassword)
}

func refreshBalancesLoop(ctx context.Context, log *slog.Logger, store *ranking.Store, gateway *chain.Client, settings *config.Settings, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.RefreshBalances(ctx, gateway, settings.Mint, settings.TokenDecimals); err != nil {
				log.Error("main: scheduled balance refresh failed", "error", err)
			}
		}
	}
}
