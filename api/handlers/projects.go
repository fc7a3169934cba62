package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cookingcrypto/backend/game/projects"
)

// ProjectsStore is the project board surface the handler needs.
type ProjectsStore interface {
	Add(ctx context.Context, p projects.Project) error
	Top(ctx context.Context) ([]projects.Project, error)
	Vote(ctx context.Context, ticker, voter string, up bool) (int, error)
}

// ProjectsHandler serves the project board endpoints.
type ProjectsHandler struct {
	log   *slog.Logger
	store ProjectsStore
}

// NewProjectsHandler creates the project board endpoints handler.
func NewProjectsHandler(log *slog.Logger, store ProjectsStore) *ProjectsHandler {
	return &ProjectsHandler{log: log, store: store}
}

// Add handles POST /projects/add.
func (h *ProjectsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var p projects.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	p.Score = 0

	err := h.store.Add(r.Context(), p)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, projects.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate_project", "project already listed")
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}

// Top handles GET /projects/top.
func (h *ProjectsHandler) Top(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.Top(r.Context())
	if err != nil {
		h.log.Error("api: projects query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failure", "could not load projects")
		return
	}
	if list == nil {
		list = []projects.Project{}
	}
	writeJSON(w, http.StatusOK, list)
}

type voteRequest struct {
	Ticker    string `json:"ticker"`
	Voter     string `json:"voter"`
	Direction string `json:"direction"`
}

// Vote handles POST /projects/vote.
func (h *ProjectsHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Direction != "up" && req.Direction != "down" {
		writeError(w, http.StatusBadRequest, "invalid_request", "direction must be 'up' or 'down'")
		return
	}

	score, err := h.store.Vote(r.Context(), req.Ticker, req.Voter, req.Direction == "up")
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "score": score})
	case errors.Is(err, projects.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "project not found")
	case errors.Is(err, projects.ErrVoteCooldown):
		writeError(w, http.StatusTooManyRequests, "vote_cooldown", "already voted on this project recently")
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}
