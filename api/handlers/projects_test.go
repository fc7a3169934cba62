package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cookingcrypto/backend/api/handlers"
	"github.com/cookingcrypto/backend/game/projects"
	gametesting "github.com/cookingcrypto/backend/utils/pkg/testing"
)

type stubProjectsStore struct {
	addErr   error
	voteErr  error
	score    int
	topList  []projects.Project
	lastVote struct {
		ticker, voter string
		up            bool
	}
}

func (s *stubProjectsStore) Add(ctx context.Context, p projects.Project) error { return s.addErr }

func (s *stubProjectsStore) Top(ctx context.Context) ([]projects.Project, error) {
	return s.topList, nil
}

func (s *stubProjectsStore) Vote(ctx context.Context, ticker, voter string, up bool) (int, error) {
	s.lastVote.ticker, s.lastVote.voter, s.lastVote.up = ticker, voter, up
	return s.score, s.voteErr
}

func TestProjectsVote_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		voteErr    error
		wantStatus int
		wantError  string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"unknown project", projects.ErrNotFound, http.StatusNotFound, "not_found"},
		{"cooldown", projects.ErrVoteCooldown, http.StatusTooManyRequests, "vote_cooldown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubProjectsStore{voteErr: tt.voteErr, score: 3}
			h := handlers.NewProjectsHandler(gametesting.NewLogger(), store)

			rec, body := postJSON(t, h.Vote, `{"ticker":"ABC","voter":"w","direction":"up"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			} else {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, 3.0, body["score"])
			}
			assert.Equal(t, "ABC", store.lastVote.ticker)
			assert.True(t, store.lastVote.up)
		})
	}
}

func TestProjectsVote_BadDirection(t *testing.T) {
	store := &stubProjectsStore{}
	h := handlers.NewProjectsHandler(gametesting.NewLogger(), store)

	rec, body := postJSON(t, h.Vote, `{"ticker":"ABC","voter":"w","direction":"sideways"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", body["error"])
}

func TestProjectsAdd_Duplicate(t *testing.T) {
	store := &stubProjectsStore{addErr: projects.ErrDuplicate}
	h := handlers.NewProjectsHandler(gametesting.NewLogger(), store)

	rec, body := postJSON(t, h.Add, `{"wallet":"w","ticker":"ABC","name":"A Project"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_project", body["error"])
}

func TestProjectsTop_EmptyIsJSONArray(t *testing.T) {
	store := &stubProjectsStore{}
	h := handlers.NewProjectsHandler(gametesting.NewLogger(), store)

	req := httptest.NewRequest(http.MethodGet, "/projects/top", nil)
	rec := httptest.NewRecorder()
	h.Top(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
