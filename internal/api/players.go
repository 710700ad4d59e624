package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"example.com/aura/internal/domain"
	"example.com/aura/internal/persistence"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (h *Handler) me(w http.ResponseWriter, r *http.Request, accountID string) {
	standing, err := h.deps.Players.GetStanding(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toPlayerView(*standing))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request, accountID string) {
	limit := queryInt(r, "limit", defaultPageSize, maxPageSize)

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.deps.Players.ListActivities(r.Context(), accountID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ActivityView, 0, len(records))
	for _, rec := range records {
		items = append(items, toActivityView(rec))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

// verifyActivity backs the anti-fraud check of self-declared workouts.
func (h *Handler) verifyActivity(w http.ResponseWriter, r *http.Request, accountID string) {
	day := r.URL.Query().Get("date")
	if _, err := time.Parse(domain.DayLayout, day); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}

	approved, err := h.deps.Players.VerifyActivityOn(r.Context(), accountID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Date: day, Approved: approved})
}

func (h *Handler) ranking(w http.ResponseWriter, r *http.Request, accountID string) {
	limit := queryInt(r, "limit", 0, 0)
	entries, err := h.deps.Ranking.Top(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := RankingResponse{Items: entries}
	for _, e := range entries {
		if e.AccountID == accountID {
			resp.Position = e.Position
			break
		}
	}
	if resp.Position == 0 {
		// Outside the requested page; unranked stays 0.
		pos, err := h.deps.Ranking.Rank(r.Context(), accountID)
		if err != nil {
			h.logger.Warn("leaderboard rank lookup failed", zap.String("account_id", accountID), zap.Error(err))
		}
		resp.Position = pos
	}
	writeJSON(w, http.StatusOK, resp)
}
