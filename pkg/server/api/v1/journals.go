package v1

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/server/api"
)

// CreateJournalHandler handles POST /api/v1/journals
//
// Request body: {"user_id": "...", "title": "...", "media_path": "..."}
//
// Registers an uploaded journal entry so processing jobs can be queued
// against it. Returns 201 with the stored record.
func CreateJournalHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateJournalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
		if err := ValidateStruct(req); err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		j := &journal.Journal{
			ID:        uuid.NewString(),
			UserID:    req.UserID,
			Title:     req.Title,
			MediaPath: req.MediaPath,
		}
		if err := deps.Journals.Create(r.Context(), j); err != nil {
			api.WriteError(w, r, err)
			return
		}

		log.Info().
			Str("component", "api").
			Str("journal_id", j.ID).
			Str("user_id", j.UserID).
			Msg("Journal created")

		api.WriteJSON(w, http.StatusCreated, j)
	}
}

// GetJournalHandler handles GET /api/v1/journals/{id}
func GetJournalHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ParseID("id", r.PathValue("id"))
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		j, err := deps.Journals.Get(r.Context(), id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, j)
	}
}
