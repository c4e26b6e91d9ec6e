package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"bedrockmate/internal/bookmarks"
	"bedrockmate/internal/logger"
)

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	worldID := r.URL.Query().Get("world_id")
	if worldID == "" {
		writeError(w, http.StatusBadRequest, "world_id is required")
		return
	}
	list, err := s.bookmarks.ListBookmarks(r.Context(), worldID)
	if err != nil {
		s.log.Error("failed to list bookmarks", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to list bookmarks")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var in bookmarks.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	created, err := s.bookmarks.CreateBookmark(r.Context(), in)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, created)
	case errors.Is(err, bookmarks.ErrInvalidBookmark):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bookmarks.ErrWorldNotFound):
		writeError(w, http.StatusNotFound, "World not found")
	default:
		s.log.Error("failed to create bookmark", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to create bookmark")
	}
}

func (s *Server) handleGetBookmark(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookmarks.GetBookmark(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, err, "Bookmark not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBookmark(w http.ResponseWriter, r *http.Request) {
	var p bookmarks.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	updated, err := s.bookmarks.UpdateBookmark(r.Context(), mux.Vars(r)["id"], p)
	if err != nil {
		if errors.Is(err, bookmarks.ErrInvalidBookmark) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.storeError(w, err, "Bookmark not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleted, err := s.bookmarks.DeleteBookmark(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "Bookmark not found")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Bookmark not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bookmark deleted", "bookmark_id": id})
}
