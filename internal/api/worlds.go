package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"bedrockmate/internal/logger"
	"bedrockmate/internal/store"
	"bedrockmate/internal/worlds"
)

func (s *Server) handleListWorlds(w http.ResponseWriter, r *http.Request) {
	list, err := s.worlds.ListWorlds(r.Context())
	if err != nil {
		s.log.Error("failed to list worlds", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to list worlds")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateWorld(w http.ResponseWriter, r *http.Request) {
	var in worlds.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	created, err := s.worlds.CreateWorld(r.Context(), in)
	if err != nil {
		if errors.Is(err, worlds.ErrInvalidWorld) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("failed to create world", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to create world")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleActiveWorld returns null when no world is active.
func (s *Server) handleActiveWorld(w http.ResponseWriter, r *http.Request) {
	active, err := s.worlds.ActiveWorld(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		s.storeError(w, err, "World not found")
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	world, err := s.worlds.GetWorld(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, err, "World not found")
		return
	}
	writeJSON(w, http.StatusOK, world)
}

func (s *Server) handleUpdateWorld(w http.ResponseWriter, r *http.Request) {
	var p worlds.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	updated, err := s.worlds.UpdateWorld(r.Context(), mux.Vars(r)["id"], p)
	if err != nil {
		if errors.Is(err, worlds.ErrInvalidWorld) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.storeError(w, err, "World not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleActivateWorld(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.worlds.ActivateWorld(r.Context(), id); err != nil {
		s.storeError(w, err, "World not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "World activated", "world_id": id})
}

func (s *Server) handleDeleteWorld(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleted, err := s.worlds.DeleteWorld(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "World not found")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "World not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "World deleted", "world_id": id})
}
