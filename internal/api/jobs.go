package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"bedrockmate/internal/client"
	"bedrockmate/internal/dispatch"
	"bedrockmate/internal/jobs"
	"bedrockmate/internal/logger"
	"bedrockmate/internal/queue"
	"bedrockmate/internal/store"
)

type createJobRequest struct {
	WorldID    string          `json:"world_id"`
	JobType    string          `json:"job_type"`
	Parameters json.RawMessage `json:"parameters"`
}

func (s *Server) handleJobTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, jobs.Catalogue())
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.JobFilter{WorldID: q.Get("world_id")}
	if status := q.Get("status"); status != "" {
		st, err := jobs.ParseStatus(status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = st
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = n
	}

	list, err := s.jobs.ListJobs(r.Context(), f)
	if err != nil {
		s.log.Error("failed to list jobs", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	j, err := s.dispatcher.Submit(r.Context(), req.WorldID, jobs.Type(req.JobType), req.Parameters)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, j)
	case errors.Is(err, jobs.ErrUnknownJobType):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown job type: %s", req.JobType))
	case errors.Is(err, jobs.ErrInvalidParameters):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrWorldNotFound):
		writeError(w, http.StatusNotFound, "World not found")
	case errors.Is(err, dispatch.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many submissions, try again later")
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "Job queue is full, try again later")
	default:
		s.log.Error("failed to submit job", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to create job")
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, err, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleted, err := s.jobs.DeleteJob(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "Job not found")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Job deleted", "job_id": id})
}

// handleJobEvents streams the job as server-sent events each time its status
// or progress changes, ending with the terminal state.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	if _, err := s.jobs.GetJob(r.Context(), id); err != nil {
		s.storeError(w, err, "Job not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, j *jobs.Job) {
		data, err := json.Marshal(j)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	final, err := client.WaitForJob(r.Context(), s.jobs, id, s.cfg.PollInterval, func(j *jobs.Job) {
		if !j.Done() {
			send("status", j)
		}
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(w, "event: deleted\ndata: {\"id\":%q}\n\n", id)
			flusher.Flush()
		}
		return
	}
	send("done", final)
}

func (s *Server) storeError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	s.log.Error("store error", logger.Err(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
