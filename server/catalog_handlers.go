package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/admin-session/adminapi"
	apperrors "github.com/jrsteele09/admin-session/internal/errors"
)

func (s *Server) catalogResource(w http.ResponseWriter, r *http.Request) (string, bool) {
	resource := r.PathValue("resource")
	if !s.catalog.has(resource) {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource "+resource)
		return "", false
	}
	return resource, true
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (record, bool) {
	var fields record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "a JSON object is required")
		return nil, false
	}
	return fields, true
}

func (s *Server) CatalogListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource, ok := s.catalogResource(w, r)
		if !ok {
			return
		}
		page := pageParam(r)
		items, total, err := s.catalog.list(resource, (page-1)*pageSize, pageSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, adminapi.Page[json.RawMessage]{Items: rawRecords(items), Page: page, Total: total})
	}
}

// CatalogByUniversityHandler lists the faculties or professors of one university.
func (s *Server) CatalogByUniversityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource, ok := s.catalogResource(w, r)
		if !ok {
			return
		}
		if resource != "faculties" && resource != "professors" {
			writeError(w, http.StatusNotFound, "not_found", resource+" are not listed per university")
			return
		}
		items, err := s.catalog.listWhere(resource, "university_id", r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, adminapi.Page[json.RawMessage]{Items: rawRecords(items), Page: 1, Total: len(items)})
	}
}

func rawRecords(items []record) []json.RawMessage {
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, _ := json.Marshal(item)
		raw = append(raw, b)
	}
	return raw
}

func (s *Server) CatalogCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource, ok := s.catalogResource(w, r)
		if !ok {
			return
		}
		fields, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		rec, err := s.catalog.create(resource, fields)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (s *Server) CatalogUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource, ok := s.catalogResource(w, r)
		if !ok {
			return
		}
		fields, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		rec, err := s.catalog.update(resource, r.PathValue("id"), fields)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) CatalogDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource, ok := s.catalogResource(w, r)
		if !ok {
			return
		}
		if err := s.catalog.delete(resource, r.PathValue("id")); err != nil {
			writeError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
