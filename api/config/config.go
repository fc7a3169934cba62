// Package config loads the service configuration from the environment and
// owns the shared PostgreSQL pool.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Settings is the full service configuration, read once at startup.
type Settings struct {
	Port        string
	CORSOrigins []string

	RPCEndpoints []string
	Mint         solana.PublicKey

	TokensPerSol  uint64
	TokenDecimals uint8

	RewardAmountSol float64
	FeeMarginSol    float64

	PrivateKeyPassword string
	EncryptedKeyFile   string
	EncryptedKeyJSON   string

	SentryDSN string
}

const lamportsPerSol = 1_000_000_000

// RewardAmountLamports returns the native reward amount in lamports.
func (s *Settings) RewardAmountLamports() uint64 {
	return uint64(s.RewardAmountSol * lamportsPerSol)
}

// FeeMarginLamports returns the fee margin in lamports.
func (s *Settings) FeeMarginLamports() uint64 {
	return uint64(s.FeeMarginSol * lamportsPerSol)
}

// Load reads the configuration from the environment.
func Load() (*Settings, error) {
	s := &Settings{
		Port:               envOr("PORT", "3000"),
		PrivateKeyPassword: os.Getenv("PRIVATE_KEY_PASSWORD"),
		EncryptedKeyFile:   os.Getenv("ENCRYPTED_KEY_FILE"),
		EncryptedKeyJSON:   os.Getenv("ENCRYPTED_KEY_JSON"),
		SentryDSN:          os.Getenv("SENTRY_DSN"),
	}

	s.RPCEndpoints = splitList(envOr("SOLANA_RPC_URLS", rpc.MainNetBeta_RPC))
	s.CORSOrigins = splitList(envOr("CORS_ORIGINS", "*"))

	if mintStr := os.Getenv("MINT_ADDRESS"); mintStr != "" {
		mint, err := solana.PublicKeyFromBase58(mintStr)
		if err != nil {
			return nil, fmt.Errorf("config: invalid MINT_ADDRESS: %w", err)
		}
		s.Mint = mint
	}

	var err error
	if s.TokensPerSol, err = envUint("TOKENS_PER_SOL", 100); err != nil {
		return nil, err
	}
	decimals, err := envUint("TOKEN_DECIMALS", 6)
	if err != nil {
		return nil, err
	}
	if decimals > 18 {
		return nil, fmt.Errorf("config: TOKEN_DECIMALS %d out of range", decimals)
	}
	s.TokenDecimals = uint8(decimals)

	if s.RewardAmountSol, err = envFloat("REWARD_AMOUNT_SOL", 0.05); err != nil {
		return nil, err
	}
	if s.FeeMarginSol, err = envFloat("FEE_MARGIN_SOL", 0.001); err != nil {
		return nil, err
	}

	if s.PrivateKeyPassword == "" {
		return nil, fmt.Errorf("config: PRIVATE_KEY_PASSWORD is required")
	}
	if s.EncryptedKeyFile == "" && s.EncryptedKeyJSON == "" {
		return nil, fmt.Errorf("config: ENCRYPTED_KEY_FILE or ENCRYPTED_KEY_JSON is required")
	}

	return s, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", key)
	}
	return f, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
