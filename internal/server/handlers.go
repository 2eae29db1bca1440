package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/meibo/internal/models"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"service": "meibo",
		"message": "Database Schema Registry API",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := s.manager.CountEntries(ctx)
	if err != nil {
		s.logger.Error("info: count entries failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	tables, err := s.manager.ListTables(ctx)
	if err != nil {
		s.logger.Error("info: list tables failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"version":     Version,
		"entry_count": count,
		"table_count": len(tables),
		"tables":      tables,
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.manager.ListTables(r.Context())
	if err != nil {
		s.logger.Error("list tables failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tables": tables,
		"count":  len(tables),
	})
}

type addTableRequest struct {
	TableSchema *models.TableSchema `json:"table_schema"`
}

func (s *Server) handleAddTable(w http.ResponseWriter, r *http.Request) {
	var req addTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := s.manager.AddTable(r.Context(), req.TableSchema)
	if err != nil {
		s.logger.Error("add table failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{
		"id":         entry.ID,
		"table_name": req.TableSchema.Name,
		"status":     "registered",
	})
}

func (s *Server) handleRemoveTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.logger.Debug("remove table request", zap.String("name", name))
	if err := s.manager.RemoveTable(r.Context(), name); err != nil {
		s.logger.Error("remove table failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"table_name": name,
		"status":     "removed",
	})
}

func (s *Server) handleReinitialize(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.Reinitialize(r.Context())
	if err != nil {
		s.logger.Error("reinitialize failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "reinitialized",
		"removed": removed,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("n_results", req.NResults))
	resp, err := s.engine.Query(r.Context(), &req)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := s.manager.AddDocument(r.Context(), &input)
	if err != nil {
		s.logger.Error("add document failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "added"})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.manager.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.manager.DeleteDocument(r.Context(), id); err != nil {
		s.logger.Error("delete document failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.Reset(r.Context())
	if err != nil {
		s.logger.Error("reset failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.logger.Warn("collection reset", zap.Int("removed", removed))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "reset",
		"removed": removed,
	})
}

// statusForError maps the domain error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidSchema), errors.Is(err, models.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
