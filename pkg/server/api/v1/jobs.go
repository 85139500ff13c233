package v1

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/reveriehq/reverie/pkg/queue"
	"github.com/reveriehq/reverie/pkg/server/api"
)

// EnqueueJournalJobHandler handles POST /api/v1/journals/{id}/jobs/{type}
//
// Accepts a processing job for a journal and returns 202 with the job ID.
//
// Path parameters:
//   - id: journal identifier
//   - type: transcription | emotion | hls
//
// Returns 404 if the journal does not exist, 409 if the journal already has
// a live job of that type (or HLS output already exists), 503 after shutdown.
func EnqueueJournalJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journalID, err := ParseID("id", r.PathValue("id"))
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		typ, err := ParseJobType(r.PathValue("type"))
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		var jobID string
		switch typ {
		case queue.TypeTranscription:
			jobID, err = deps.Pipeline.EnqueueTranscription(r.Context(), journalID)
		case queue.TypeEmotion:
			jobID, err = deps.Pipeline.EnqueueEmotion(r.Context(), journalID)
		case queue.TypeHLS:
			jobID, err = deps.Pipeline.EnqueueHLS(r.Context(), journalID)
		}
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		log.Info().
			Str("component", "api").
			Str("journal_id", journalID).
			Str("job_type", string(typ)).
			Str("job_id", jobID).
			Msg("Job accepted")

		api.WriteJSON(w, http.StatusAccepted, api.EnqueueResponse{
			JobID: jobID,
			Queue: deps.Pipeline.Queue(typ).Name(),
		})
	}
}

// CreateBackupHandler handles POST /api/v1/backups
//
// Request body: {"user_id": "..."}
//
// Queues a full backup of the user's journals and media. Returns 409 when a
// backup or restore for that user is already in flight.
func CreateBackupHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateBackupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
		if err := ValidateStruct(req); err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		jobID, err := deps.Pipeline.EnqueueBackup(r.Context(), req.UserID)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusAccepted, api.EnqueueResponse{
			JobID: jobID,
			Queue: deps.Pipeline.Queue(queue.TypeBackup).Name(),
		})
	}
}

// CreateRestoreHandler handles POST /api/v1/restores
//
// Request body: {"user_id": "...", "archive_path": "..."}
func CreateRestoreHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateRestoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
		if err := ValidateStruct(req); err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		jobID, err := deps.Pipeline.EnqueueRestore(r.Context(), req.UserID, req.ArchivePath)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusAccepted, api.EnqueueResponse{
			JobID: jobID,
			Queue: deps.Pipeline.Queue(queue.TypeRestore).Name(),
		})
	}
}

// GetJobHandler handles GET /api/v1/jobs/{type}/{id}
//
// Returns the full job record: status, attempts, progress, result, error.
// Returns 404 when the ID is unknown, including records already swept.
func GetJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typ, err := ParseLookupType(r.PathValue("type"))
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		id, err := ParseID("id", r.PathValue("id"))
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		job, ok := deps.Pipeline.Queue(typ).Job(id)
		if !ok {
			api.WriteJSONError(w, http.StatusNotFound, "Not Found", "job "+id+" not found")
			return
		}
		api.WriteJSON(w, http.StatusOK, job)
	}
}

// GetJournalJobHandler handles GET /api/v1/journals/{id}/jobs/{type}
//
// Looks a job up by its resource key rather than job ID: the first record
// for that journal in insertion order. Useful for clients that only know
// the journal.
func GetJournalJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journalID, err := ParseID("id", r.PathValue("id"))
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		typ, err := ParseLookupType(r.PathValue("type"))
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		job, ok := deps.Pipeline.Queue(typ).JobByResource(journalID)
		if !ok {
			api.WriteJSONError(w, http.StatusNotFound, "Not Found", "no "+string(typ)+" job for "+journalID)
			return
		}
		api.WriteJSON(w, http.StatusOK, job)
	}
}

// QueueStatsHandler handles GET /api/v1/queues
//
// Returns per-queue record counts keyed by queue name:
//
//	{
//	  "transcription": {"pending": 2, "processing": 1, "completed": 40, "failed": 0, "total": 43},
//	  ...
//	}
func QueueStatsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := deps.Pipeline.Stats()
		out := make(map[string]api.QueueStatsEntry, len(stats))
		for name, s := range stats {
			out[name] = api.QueueStatsEntry{
				Pending:    s.Pending,
				Processing: s.Processing,
				Completed:  s.Completed,
				Failed:     s.Failed,
				Total:      s.Total,
			}
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}
