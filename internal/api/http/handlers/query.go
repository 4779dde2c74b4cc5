package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"dexanalytics/internal/service"
	"dexanalytics/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) Bundle(w http.ResponseWriter, r *http.Request) {
	b, err := h.indexer.Bundle(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, b)
}

func (h *Handler) Factory(w http.ResponseWriter, r *http.Request) {
	f, err := h.indexer.Factory(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, f)
}

func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	t, err := h.indexer.Token(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, t)
}

func (h *Handler) Pool(w http.ResponseWriter, r *http.Request) {
	p, err := h.indexer.Pool(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, p)
}

func (h *Handler) PoolBucket(w http.ResponseWriter, r *http.Request) {
	ts, ok := h.timestamp(w, r)
	if !ok {
		return
	}

	b, err := h.indexer.PoolBucket(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "interval"), ts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, b)
}

func (h *Handler) TokenBucket(w http.ResponseWriter, r *http.Request) {
	ts, ok := h.timestamp(w, r)
	if !ok {
		return
	}

	b, err := h.indexer.TokenBucket(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "interval"), ts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, b)
}

func (h *Handler) ProtocolDay(w http.ResponseWriter, r *http.Request) {
	ts, ok := h.timestamp(w, r)
	if !ok {
		return
	}

	d, err := h.indexer.ProtocolDay(r.Context(), ts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, d)
}

// timestamp reads ?ts= in unix seconds, now when absent
func (h *Handler) timestamp(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("ts")
	if raw == "" {
		return h.now().Unix(), true
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts < 0 {
		h.respondError(w, r, http.StatusBadRequest, httputil.CodeBadRequest, "ts must be unix seconds", map[string]any{"ts": raw})
		return 0, false
	}
	return ts, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInterval):
		h.respondError(w, r, http.StatusBadRequest, httputil.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrPoolNotFound),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrBucketNotFound):
		h.respondError(w, r, http.StatusNotFound, httputil.CodeNotFound, err.Error(), nil)
	default:
		h.log.Errorf("Request %s failed: %v", r.URL.Path, err)
		h.respondError(w, r, http.StatusInternalServerError, httputil.CodeInternal, "internal error", nil)
	}
}
