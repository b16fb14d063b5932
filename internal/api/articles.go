package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-ssr/internal/article"
	"github.com/JakeFAU/blog-ssr/internal/logging"
	"github.com/JakeFAU/blog-ssr/internal/metrics"
)

type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.List(r.Context())
	if err != nil {
		s.storeFailure(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeList(items))
}

func (s *Server) listPublished(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListPublished(r.Context())
	if err != nil {
		s.storeFailure(w, r, "list_published", err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeList(items))
}

func (s *Server) createArticle(w http.ResponseWriter, r *http.Request) {
	var draft article.Draft
	if status, err := decodeBody(r, &draft); err != nil {
		writeError(w, status, err.Error())
		return
	}
	created, err := s.store.Create(r.Context(), draft)
	if err != nil {
		if errors.Is(err, article.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.storeFailure(w, r, "create", err)
		return
	}
	logging.FromContext(r.Context(), s.logger).Info("article created", zap.String("id", created.ID))
	writeJSON(w, http.StatusCreated, normalize(created))
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, article.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		s.storeFailure(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, normalize(a))
}

func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch article.Patch
	if status, err := decodeBody(r, &patch); err != nil {
		writeError(w, status, err.Error())
		return
	}
	updated, err := s.store.Update(r.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, article.ErrNotFound):
			writeError(w, http.StatusNotFound, "article not found")
		case errors.Is(err, article.ErrInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.storeFailure(w, r, "update", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, normalize(updated))
}

func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, article.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		s.storeFailure(w, r, "delete", err)
		return
	}
	logging.FromContext(r.Context(), s.logger).Info("article deleted", zap.String("id", id))
	writeJSON(w, http.StatusOK, deleteResponse{ID: id, Deleted: true})
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	metrics.ObserveStoreError(op)
	logging.FromContext(r.Context(), s.logger).Error("article store failed",
		zap.String("op", op),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeBody reads a single JSON object, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) (int, error) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, errors.New("request body too large")
		}
		if errors.Is(err, io.EOF) {
			return http.StatusBadRequest, errors.New("request body required")
		}
		return http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return http.StatusBadRequest, errors.New("invalid JSON: trailing data")
	}
	return 0, nil
}

func normalize(a article.Article) article.Article {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a
}

func normalizeList(items []article.Article) []article.Article {
	out := make([]article.Article, 0, len(items))
	for _, a := range items {
		out = append(out, normalize(a))
	}
	return out
}
