package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dexanalytics/internal/domain"
	"dexanalytics/pkg/httputil"

	"gitlab.com/nevasik7/alerting/logger"
)

const readinessTimeout = 5 * time.Second

// Indexer is the read side of the indexer service
type Indexer interface {
	CheckDependency(ctx context.Context) error
	Bundle(ctx context.Context) (*domain.Bundle, error)
	Factory(ctx context.Context) (*domain.Factory, error)
	Token(ctx context.Context, id string) (*domain.Token, error)
	Pool(ctx context.Context, id string) (*domain.Pool, error)
	PoolBucket(ctx context.Context, poolID, interval string, ts int64) (*domain.PoolBucket, error)
	TokenBucket(ctx context.Context, tokenID, interval string, ts int64) (*domain.TokenBucket, error)
	ProtocolDay(ctx context.Context, ts int64) (*domain.ProtocolDayData, error)
}

type Handler struct {
	log     logger.Logger
	indexer Indexer
	now     func() time.Time
}

func NewHandler(log logger.Logger, indexer Indexer) (*Handler, error) {
	if indexer == nil {
		return nil, errors.New("indexer is required to the http handler")
	}
	return &Handler{log: log, indexer: indexer, now: time.Now}, nil
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	if err := httputil.JSON(w, http.StatusOK, map[string]any{}, nil); err != nil {
		h.log.Errorf("Healthz handler error: %v", err)
	}
}

// Readiness checks the store, deduper and the optional sink and broadcaster
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.indexer.CheckDependency(ctx); err != nil {
		h.log.Warnf("Readiness failed: %v", err)
		h.respondError(w, r, http.StatusServiceUnavailable, httputil.CodeUnavailable, "dependencies check failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	h.respond(w, r, map[string]string{"dependencies": "healthy"})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, body any) {
	if err := httputil.JSON(w, http.StatusOK, body, nil); err != nil {
		h.log.Errorf("Write response for %s failed: %v", r.URL.Path, err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, code, msg string, details any) {
	if err := httputil.Error(w, r, status, code, msg, details); err != nil {
		h.log.Errorf("Write error response for %s failed: %v", r.URL.Path, err)
	}
}
