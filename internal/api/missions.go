package api

import (
	"errors"
	"net/http"

	"example.com/aura/internal/domain"
)

func (h *Handler) listMissions(w http.ResponseWriter, r *http.Request, accountID string) {
	today := h.deps.Missions.Today()
	missions, err := h.deps.Missions.GenerateOrFetch(r.Context(), accountID, today)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	views := make([]MissionView, 0, len(missions))
	for _, m := range missions {
		views = append(views, toMissionView(m))
	}
	writeJSON(w, http.StatusOK, MissionsResponse{Day: today, Missions: views})
}

func (h *Handler) completeMission(w http.ResponseWriter, r *http.Request, accountID string) {
	missionID := r.PathValue("id")
	if missionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing mission id")
		return
	}

	mission, result, err := h.deps.Missions.Complete(r.Context(), accountID, missionID)
	switch {
	case errors.Is(err, domain.ErrMissionAlreadyCompleted):
		writeError(w, http.StatusConflict, "already_completed", "mission already completed")
		return
	case errors.Is(err, domain.ErrMissionNotFound), errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "not_found", "mission not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CompleteMissionResponse{Mission: toMissionView(*mission), Ledger: result})
}
