package ranking_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitesting "github.com/cookingcrypto/backend/api/testing"
	"github.com/cookingcrypto/backend/game/ranking"
	gametesting "github.com/cookingcrypto/backend/utils/pkg/testing"
)

var testDB *apitesting.DB

func TestMain(m *testing.M) {
	ctx := context.Background()
	log := slog.Default()

	var err error
	testDB, err = apitesting.NewDB(ctx, log, nil)
	if err != nil {
		slog.Error("failed to start PostgreSQL container", "error", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

func newStore(t *testing.T) *ranking.Store {
	t.Helper()
	store, err := ranking.NewStore(ranking.StoreConfig{
		Logger: gametesting.NewLogger(),
		Pool:   apitesting.NewTestPool(t, testDB),
	})
	require.NoError(t, err)
	return store
}

func TestUpsert(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)
	addr := solana.NewWallet().PublicKey().String()

	require.NoError(t, store.Upsert(ctx, addr, "chef"))
	require.NoError(t, store.Upsert(ctx, addr, "sous-chef"))

	entries, err := store.Top(ctx, 10)
	require.NoError(t, err)

	found := false
	for _, e := range entries {
		if e.Address == addr {
			found = true
			assert.Equal(t, "sous-chef", e.Username)
		}
	}
	assert.True(t, found)
}

func TestUpsert_InvalidAddress(t *testing.T) {
	store := newStore(t)
	assert.Error(t, store.Upsert(t.Context(), "not-a-wallet", "chef"))
}

func TestAddShopping(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)
	addr := solana.NewWallet().PublicKey().String()

	// Creates the row even without a prior Upsert.
	require.NoError(t, store.AddShopping(ctx, addr, 10))
	require.NoError(t, store.AddShopping(ctx, addr, 5))

	entries, err := store.Top(ctx, 100)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Address == addr {
			assert.Equal(t, 15.0, e.Shopping)
			return
		}
	}
	t.Fatalf("address %s not in leaderboard", addr)
}

func TestAddShopping_RejectsNonPositive(t *testing.T) {
	store := newStore(t)
	addr := solana.NewWallet().PublicKey().String()
	assert.Error(t, store.AddShopping(t.Context(), addr, 0))
	assert.Error(t, store.AddShopping(t.Context(), addr, -3))
}

func TestTop_ScoreWeighting(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)

	holder := solana.NewWallet().PublicKey().String()
	shopper := solana.NewWallet().PublicKey().String()

	// 100 shopping points at 2.2x beat a balance of 200.
	require.NoError(t, store.Upsert(ctx, holder, "holder"))
	require.NoError(t, store.AddShopping(ctx, shopper, 100))

	src := &fakeBalanceSource{balances: map[string]uint64{holder: 200_000_000}} // 200 tokens at 6 dp
	require.NoError(t, store.RefreshBalances(ctx, src, solana.NewWallet().PublicKey(), 6))

	entries, err := store.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, shopper, entries[0].Address)
	assert.Equal(t, 220.0, entries[0].Score)
	assert.Equal(t, holder, entries[1].Address)
	assert.Equal(t, 200.0, entries[1].Score)
}

func TestRefreshBalances_SkipsFailedLookups(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)

	good := solana.NewWallet().PublicKey().String()
	bad := solana.NewWallet().PublicKey().String()
	require.NoError(t, store.Upsert(ctx, good, "good"))
	require.NoError(t, store.Upsert(ctx, bad, "bad"))

	src := &fakeBalanceSource{
		balances: map[string]uint64{good: 5_000_000},
		failing:  map[string]bool{bad: true},
	}
	require.NoError(t, store.RefreshBalances(ctx, src, solana.NewWallet().PublicKey(), 6))

	entries, err := store.Top(ctx, 100)
	require.NoError(t, err)
	for _, e := range entries {
		switch e.Address {
		case good:
			assert.Equal(t, 5.0, e.Balance)
		case bad:
			assert.Equal(t, 0.0, e.Balance)
		}
	}
}

type fakeBalanceSource struct {
	balances map[string]uint64
	failing  map[string]bool
}

func (f *fakeBalanceSource) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	if f.failing[owner.String()] {
		return 0, context.DeadlineExceeded
	}
	return f.balances[owner.String()], nil
}
