package service

import (
	"context"
	"fmt"
	"strconv"

	"dexanalytics/internal/domain"
	"dexanalytics/internal/window"
)

// Read side for the HTTP API; safe to call concurrently with Handle.

// Bundle never writes: without a stored bundle the configured default is returned
func (s *IndexerService) Bundle(ctx context.Context) (*domain.Bundle, error) {
	b, err := s.repo.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	if b == nil || !b.EthPriceUSD.IsPositive() {
		return &domain.Bundle{ID: domain.BundleID, EthPriceUSD: s.pricer.Settings().DefaultEthPriceUSD}, nil
	}
	return b, nil
}

func (s *IndexerService) Token(ctx context.Context, id string) (*domain.Token, error) {
	t, err := s.repo.Token(ctx, domain.NormalizeAddress(id))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

func (s *IndexerService) Pool(ctx context.Context, id string) (*domain.Pool, error) {
	p, err := s.repo.Pool(ctx, domain.NormalizeAddress(id))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

// PoolBucket returns the pool bucket of the given interval ("day"|"hour") holding ts
func (s *IndexerService) PoolBucket(ctx context.Context, poolID, interval string, ts int64) (*domain.PoolBucket, error) {
	iv, err := window.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}

	id := window.BucketID(domain.NormalizeAddress(poolID), iv.Index(ts))
	b, err := s.repo.PoolBucket(ctx, iv.PoolKind, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBucketNotFound
	}
	return b, nil
}

func (s *IndexerService) TokenBucket(ctx context.Context, tokenID, interval string, ts int64) (*domain.TokenBucket, error) {
	iv, err := window.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}

	id := window.BucketID(domain.NormalizeAddress(tokenID), iv.Index(ts))
	b, err := s.repo.TokenBucket(ctx, iv.TokenKind, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBucketNotFound
	}
	return b, nil
}

func (s *IndexerService) ProtocolDay(ctx context.Context, ts int64) (*domain.ProtocolDayData, error) {
	d, err := s.repo.ProtocolDay(ctx, strconv.FormatInt(window.Day.Index(ts), 10))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrBucketNotFound
	}
	return d, nil
}

func (s *IndexerService) Factory(ctx context.Context) (*domain.Factory, error) {
	f, err := s.repo.Factory(ctx, s.factoryAddress)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return &domain.Factory{ID: s.factoryAddress}, nil
	}
	return f, nil
}
