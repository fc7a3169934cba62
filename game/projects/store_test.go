package projects_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitesting "github.com/cookingcrypto/backend/api/testing"
	"github.com/cookingcrypto/backend/game/projects"
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

func newStore(t *testing.T) *projects.Store {
	t.Helper()
	store, err := projects.NewStore(projects.StoreConfig{
		Logger: gametesting.NewLogger(),
		Pool:   apitesting.NewTestPool(t, testDB),
	})
	require.NoError(t, err)
	return store
}

func newProject(ticker string) projects.Project {
	return projects.Project{
		Wallet: solana.NewWallet().PublicKey().String(),
		Ticker: ticker,
		Name:   "Project " + ticker,
	}
}

func TestAdd(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)

	p := newProject("ADD1")
	p.Website = "https://example.com"
	require.NoError(t, store.Add(ctx, p))

	top, err := store.Top(ctx)
	require.NoError(t, err)
	found := false
	for _, got := range top {
		if got.Ticker == "ADD1" {
			found = true
			assert.Equal(t, p.Wallet, got.Wallet)
			assert.Equal(t, "https://example.com", got.Website)
			assert.Zero(t, got.Score)
		}
	}
	assert.True(t, found)
}

func TestAdd_Duplicate(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)

	p := newProject("DUP1")
	require.NoError(t, store.Add(ctx, p))

	// Same ticker, different wallet.
	again := newProject("DUP1")
	assert.ErrorIs(t, store.Add(ctx, again), projects.ErrDuplicate)

	// Same wallet, different ticker.
	p.Ticker = "DUP2"
	assert.ErrorIs(t, store.Add(ctx, p), projects.ErrDuplicate)
}

func TestAdd_Validation(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)

	tests := []struct {
		name   string
		mutate func(*projects.Project)
	}{
		{"missing wallet", func(p *projects.Project) { p.Wallet = "" }},
		{"lowercase ticker", func(p *projects.Project) { p.Ticker = "abc" }},
		{"ticker too short", func(p *projects.Project) { p.Ticker = "A" }},
		{"ticker too long", func(p *projects.Project) { p.Ticker = "TOOLONGTICK" }},
		{"name too short", func(p *projects.Project) { p.Name = "ab" }},
		{"bad website", func(p *projects.Project) { p.Website = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject("VAL1")
			tt.mutate(&p)
			assert.Error(t, store.Add(ctx, p))
		})
	}
}

func TestVote(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)
	require.NoError(t, store.Add(ctx, newProject("VOTE1")))

	score, err := store.Vote(ctx, "VOTE1", "voter-a", true)
	require.NoError(t, err)
	assert.Equal(t, 1, score)

	score, err = store.Vote(ctx, "VOTE1", "voter-b", false)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestVote_Cooldown(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)
	require.NoError(t, store.Add(ctx, newProject("COOL1")))

	_, err := store.Vote(ctx, "COOL1", "voter-a", true)
	require.NoError(t, err)

	_, err = store.Vote(ctx, "COOL1", "voter-a", true)
	assert.ErrorIs(t, err, projects.ErrVoteCooldown)

	// A different voter is unaffected.
	score, err := store.Vote(ctx, "COOL1", "voter-b", true)
	require.NoError(t, err)
	assert.Equal(t, 2, score)
}

func TestVote_UnknownProject(t *testing.T) {
	store := newStore(t)
	_, err := store.Vote(t.Context(), "NOPE", "voter-a", true)
	assert.ErrorIs(t, err, projects.ErrNotFound)
}

func TestVote_DownvotesDeleteAtThreshold(t *testing.T) {
	ctx := t.Context()
	store := newStore(t)
	require.NoError(t, store.Add(ctx, newProject("SINK1")))

	for i := 0; i < 10; i++ {
		voter := fmt.Sprintf("voter-%d", i)
		_, err := store.Vote(ctx, "SINK1", voter, false)
		require.NoError(t, err)
	}

	// The tenth downvote took it to -10 and removed it.
	_, err := store.Vote(ctx, "SINK1", "voter-final", false)
	assert.ErrorIs(t, err, projects.ErrNotFound)

	top, err := store.Top(ctx)
	require.NoError(t, err)
	for _, p := range top {
		assert.NotEqual(t, "SINK1", p.Ticker)
	}
}
