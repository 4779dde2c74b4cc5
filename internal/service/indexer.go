package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dexanalytics/internal/dedupe"
	"dexanalytics/internal/domain"
	"dexanalytics/internal/metrics"
	"dexanalytics/internal/pricing"
	"dexanalytics/internal/pubsub"
	"dexanalytics/internal/store"
	"dexanalytics/internal/window"

	"gitlab.com/nevasik7/alerting/logger"
)

const (
	// Uniswap v3 factory, same address on Arbitrum One
	DefaultFactoryAddress  = "0x1f98431c8ad98523631ae4a59f267346ea31f984"
	DefaultBroadcastPrefix = "clmm.patch"
)

// pools whose PoolCreated is ignored
var DefaultSkipPools = []string{
	"0x8fe8d9bb8eeba3ed688069c3d6b556c9ca258248",
}

var (
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrPoolNotFound     = errors.New("pool not found")
	ErrTokenNotFound    = errors.New("token not found")
	ErrBucketNotFound   = errors.New("bucket not found")
	ErrInvalidInterval  = errors.New("invalid interval")
)

// MetadataResolver answers ERC-20 metadata and never fails
type MetadataResolver interface {
	Resolve(ctx context.Context, address string) domain.TokenMetadata
}

// AnalyticsSink receives the records of every applied event
type AnalyticsSink interface {
	WriteSwap(ctx context.Context, s *domain.Swap) error
	WriteLiquidity(ctx context.Context, kind domain.Kind, c *domain.LiquidityChange) error
	WritePoolBuckets(ctx context.Context, buckets []*domain.PoolBucket) error
	Health(ctx context.Context) error
}

type Options struct {
	ChainID         uint32 // 0 -> accept every chain
	FactoryAddress  string
	SkipPools       []string
	BroadcastPrefix string
}

type Deps struct {
	Repo        *store.Repository
	Pricer      *pricing.Pricer
	Rollup      window.Aggregator
	Resolver    MetadataResolver
	Deduper     dedupe.Deduper
	Broadcaster pubsub.Broadcaster // optional
	Sink        AnalyticsSink      // optional
	Metrics     *metrics.Metrics   // optional
}

// IndexerService is the only point of orchestration for pool events:
// dedup → apply (entities, prices, buckets) → broadcast → sink → mark seen.
// Handle must be called by a single goroutine, events in chain order.
type IndexerService struct {
	log         logger.Logger
	repo        *store.Repository
	pricer      *pricing.Pricer
	rollup      window.Aggregator
	resolver    MetadataResolver
	deduper     dedupe.Deduper
	broadcaster pubsub.Broadcaster
	sink        AnalyticsSink
	metrics     *metrics.Metrics

	chainID         uint32
	factoryAddress  string
	skipPools       map[string]struct{}
	broadcastPrefix string
}

func NewIndexerService(log logger.Logger, opts Options, deps Deps) (*IndexerService, error) {
	switch {
	case deps.Repo == nil:
		return nil, errors.New("repository is required to the indexer")
	case deps.Pricer == nil:
		return nil, errors.New("pricer is required to the indexer")
	case deps.Rollup == nil:
		return nil, errors.New("rollup is required to the indexer")
	case deps.Resolver == nil:
		return nil, errors.New("metadata resolver is required to the indexer")
	case deps.Deduper == nil:
		return nil, errors.New("deduper is required to the indexer")
	}

	factory := domain.NormalizeAddress(opts.FactoryAddress)
	if factory == "" {
		factory = DefaultFactoryAddress
	}

	skipList := opts.SkipPools
	if len(skipList) == 0 {
		skipList = DefaultSkipPools
	}
	skip := make(map[string]struct{}, len(skipList))
	for _, p := range skipList {
		skip[domain.NormalizeAddress(p)] = struct{}{}
	}

	prefix := strings.TrimSuffix(opts.BroadcastPrefix, ".")
	if prefix == "" {
		prefix = DefaultBroadcastPrefix
	}

	return &IndexerService{
		log:             log,
		repo:            deps.Repo,
		pricer:          deps.Pricer,
		rollup:          deps.Rollup,
		resolver:        deps.Resolver,
		deduper:         deps.Deduper,
		broadcaster:     deps.Broadcaster,
		sink:            deps.Sink,
		metrics:         deps.Metrics,
		chainID:         opts.ChainID,
		factoryAddress:  factory,
		skipPools:       skip,
		broadcastPrefix: prefix,
	}, nil
}

// Handle applies one event. An event that fails is not marked seen, so a
// redelivery applies it again from the start.
func (s *IndexerService) Handle(ctx context.Context, env *domain.Envelope) error {
	if env == nil {
		return errors.New("nil envelope")
	}

	start := time.Now()
	kind := string(env.Kind)
	eventID := env.EventID()

	if s.chainID != 0 && env.ChainID != s.chainID {
		s.log.Warnf("Event %s from chain %d ignored, indexing chain %d", eventID, env.ChainID, s.chainID)
		s.metrics.ObserveEvent(kind, metrics.ResultSkipped, 0)
		return nil
	}

	isDup, err := s.deduper.IsDuplicate(ctx, eventID)
	if err != nil {
		s.metrics.ObserveEvent(kind, metrics.ResultError, 0)
		return fmt.Errorf("dedup check failed for %s: %w", eventID, err)
	}

	if isDup {
		s.log.Debugf("Duplicate event ignored: %s", eventID)
		s.metrics.ObserveEvent(kind, metrics.ResultDuplicate, 0)
		return nil
	}

	if err = s.apply(ctx, env); err != nil {
		s.metrics.ObserveEvent(kind, metrics.ResultError, 0)
		return fmt.Errorf("apply %s failed for %s: %w", kind, eventID, err)
	}

	// a lost mark means one redelivery, logged only
	if err = s.deduper.MarkSeen(ctx, eventID); err != nil {
		s.log.Errorf("Failed to mark event as seen %s: %v", eventID, err)
	}

	s.metrics.ObserveEvent(kind, metrics.ResultOK, time.Since(start))
	s.log.Debugf("Event processed successfully: %s (kind=%s, block=%d)", eventID, kind, env.BlockNumber)

	return nil
}

func (s *IndexerService) apply(ctx context.Context, env *domain.Envelope) error {
	meta := env.Meta()

	switch env.Kind {
	case domain.EventPoolCreated:
		var ev domain.PoolCreatedEvent
		if err := decode(env, &ev); err != nil {
			return err
		}
		ev.EventMeta = meta
		return s.HandlePoolCreated(ctx, &ev)

	case domain.EventInitialize:
		var ev domain.InitializeEvent
		if err := decode(env, &ev); err != nil {
			return err
		}
		ev.EventMeta = meta
		return s.HandleInitialize(ctx, &ev)

	case domain.EventSwap:
		var ev domain.SwapEvent
		if err := decode(env, &ev); err != nil {
			return err
		}
		ev.EventMeta = meta
		return s.HandleSwap(ctx, &ev)

	case domain.EventMint, domain.EventBurn:
		var ev domain.LiquidityEvent
		if err := decode(env, &ev); err != nil {
			return err
		}
		ev.EventMeta = meta
		if env.Kind == domain.EventMint {
			return s.HandleMint(ctx, &ev)
		}
		return s.HandleBurn(ctx, &ev)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, env.Kind)
	}
}

func decode(env *domain.Envelope, v interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("empty %s payload", env.Kind)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return nil
}

func (s *IndexerService) CheckDependency(ctx context.Context) error {
	errDependency := make([]string, 0, 4)

	if err := s.repo.Store().Health(ctx); err != nil {
		errDependency = append(errDependency, fmt.Sprintf("Store connection error: %v", err))
	}

	if err := s.deduper.Health(ctx); err != nil {
		errDependency = append(errDependency, fmt.Sprintf("Dedupe connection error: %v", err))
	}

	if s.sink != nil {
		if err := s.sink.Health(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("ClickHouse connection error: %v", err))
		}
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Health(ctx); err != nil {
			errDependency = append(errDependency, "NATS: connection not ready")
		}
	}

	if len(errDependency) > 0 {
		return fmt.Errorf("dependency check failed: %v", strings.Join(errDependency, "; "))
	}

	s.log.Debugf("All dependency check passed")
	return nil
}
