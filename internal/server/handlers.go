package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/fulltextable/internal/config"
	"github.com/hyperjump/fulltextable/internal/content"
	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/source"
	"github.com/hyperjump/fulltextable/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("query", req.Query),
		zap.Strings("only_types", req.OnlyTypes))
	results, err := s.engine.Search(r.Context(), &req)
	if err != nil {
		s.respondFailure(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleSearchType(w http.ResponseWriter, r *http.Request) {
	sourceType := chi.URLParam(r, "type")
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("type search request",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("type", sourceType),
		zap.String("query", req.Query))
	results, err := s.engine.SearchType(r.Context(), sourceType, &req)
	if err != nil {
		s.respondFailure(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var a content.Article
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if a.Title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.content.CreateArticle(r.Context(), &a); err != nil {
		s.respondFailure(w, "create article failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	a, err := s.content.Articles.Get(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "get article failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var a content.Article
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.ID = id
	if err := s.content.UpdateArticle(r.Context(), &a); err != nil {
		s.respondFailure(w, "update article failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.content.DeleteArticle(r.Context(), id); err != nil {
		s.respondFailure(w, "delete article failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var c content.Comment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if c.Body == "" {
		s.respondError(w, http.StatusBadRequest, "body is required")
		return
	}
	if err := s.content.CreateComment(r.Context(), &c); err != nil {
		s.respondFailure(w, "create comment failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	c, err := s.content.Comments.Get(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "get comment failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var c content.Comment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c.ID = id
	if err := s.content.UpdateComment(r.Context(), &c); err != nil {
		s.respondFailure(w, "update comment failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.content.DeleteComment(r.Context(), id); err != nil {
		s.respondFailure(w, "delete comment failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.storage.CountRows(r.Context())
	if err != nil {
		s.logger.Error("status: count rows failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{"rows": rows}

	if s.config != nil {
		cfg := s.config.Storage
		resp["config"] = map[string]interface{}{
			"backend":               cfg.Backend,
			"table":                 cfg.Table,
			"database_path":         cfg.DatabasePath,
			"bleve_index_path":      cfg.BleveIndexPath,
			"content_database_path": cfg.ContentDatabasePath,
			"strict_references":     s.config.Search.StrictReferences,
		}
		indexPath := cfg.DatabasePath
		if cfg.Backend == config.BackendBleve {
			indexPath = cfg.BleveIndexPath
		}
		if diskBytes, err := storage.DiskUsageBytes(indexPath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery), errors.Is(err, models.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound), errors.Is(err, source.ErrUnknownType):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
