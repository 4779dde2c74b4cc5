package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dexanalytics/internal/domain"
)

// Repository is a typed view over a Store. Load methods return (nil, nil) when
// the entity does not exist yet.
type Repository struct {
	store Store
}

func NewRepository(s Store) (*Repository, error) {
	if s == nil {
		return nil, errors.New("store is required to the repository")
	}
	return &Repository{store: s}, nil
}

func (r *Repository) Store() Store { return r.store }

func load[T any](ctx context.Context, s Store, kind domain.Kind, id string) (*T, error) {
	data, err := s.Get(ctx, kind, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var v T
	if err = json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return &v, nil
}

func save[T any](ctx context.Context, s Store, kind domain.Kind, id string, v *T) error {
	if v == nil {
		return fmt.Errorf("save %s %s: nil entity", kind, id)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	if err = s.Put(ctx, kind, id, data); err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, err)
	}
	return nil
}

func (r *Repository) Bundle(ctx context.Context) (*domain.Bundle, error) {
	return load[domain.Bundle](ctx, r.store, domain.KindBundle, domain.BundleID)
}

func (r *Repository) SaveBundle(ctx context.Context, b *domain.Bundle) error {
	return save(ctx, r.store, domain.KindBundle, domain.BundleID, b)
}

func (r *Repository) Factory(ctx context.Context, id string) (*domain.Factory, error) {
	return load[domain.Factory](ctx, r.store, domain.KindFactory, id)
}

func (r *Repository) SaveFactory(ctx context.Context, f *domain.Factory) error {
	return save(ctx, r.store, domain.KindFactory, f.ID, f)
}

func (r *Repository) Token(ctx context.Context, id string) (*domain.Token, error) {
	return load[domain.Token](ctx, r.store, domain.KindToken, id)
}

func (r *Repository) SaveToken(ctx context.Context, t *domain.Token) error {
	return save(ctx, r.store, domain.KindToken, t.ID, t)
}

func (r *Repository) Pool(ctx context.Context, id string) (*domain.Pool, error) {
	return load[domain.Pool](ctx, r.store, domain.KindPool, id)
}

func (r *Repository) SavePool(ctx context.Context, p *domain.Pool) error {
	return save(ctx, r.store, domain.KindPool, p.ID, p)
}

// kind is KindPoolDay or KindPoolHour
func (r *Repository) PoolBucket(ctx context.Context, kind domain.Kind, id string) (*domain.PoolBucket, error) {
	return load[domain.PoolBucket](ctx, r.store, kind, id)
}

func (r *Repository) SavePoolBucket(ctx context.Context, kind domain.Kind, b *domain.PoolBucket) error {
	return save(ctx, r.store, kind, b.ID, b)
}

// kind is KindTokenDay or KindTokenHour
func (r *Repository) TokenBucket(ctx context.Context, kind domain.Kind, id string) (*domain.TokenBucket, error) {
	return load[domain.TokenBucket](ctx, r.store, kind, id)
}

func (r *Repository) SaveTokenBucket(ctx context.Context, kind domain.Kind, b *domain.TokenBucket) error {
	return save(ctx, r.store, kind, b.ID, b)
}

func (r *Repository) ProtocolDay(ctx context.Context, id string) (*domain.ProtocolDayData, error) {
	return load[domain.ProtocolDayData](ctx, r.store, domain.KindProtocolDay, id)
}

func (r *Repository) SaveProtocolDay(ctx context.Context, d *domain.ProtocolDayData) error {
	return save(ctx, r.store, domain.KindProtocolDay, d.ID, d)
}

func (r *Repository) Swap(ctx context.Context, id string) (*domain.Swap, error) {
	return load[domain.Swap](ctx, r.store, domain.KindSwap, id)
}

func (r *Repository) SaveSwap(ctx context.Context, s *domain.Swap) error {
	return save(ctx, r.store, domain.KindSwap, s.ID, s)
}

// kind is KindMint or KindBurn
func (r *Repository) LiquidityChange(ctx context.Context, kind domain.Kind, id string) (*domain.LiquidityChange, error) {
	return load[domain.LiquidityChange](ctx, r.store, kind, id)
}

func (r *Repository) SaveLiquidityChange(ctx context.Context, kind domain.Kind, c *domain.LiquidityChange) error {
	return save(ctx, r.store, kind, c.ID, c)
}
