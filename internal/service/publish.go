package service

import (
	"context"

	"dexanalytics/internal/domain"
	"dexanalytics/internal/pubsub"
)

// PoolPatch is the message fanned out after a pool's buckets change
type PoolPatch struct {
	Pool    string               `json:"pool"`
	Buckets []*domain.PoolBucket `json:"buckets"` // day first, then hour
}

func (s *IndexerService) PatchSubject(poolID string) string {
	return pubsub.PoolPatchSubject(s.broadcastPrefix, poolID)
}

// errors of broadcast are not critical, subscribers get the next patch
func (s *IndexerService) publishBuckets(ctx context.Context, poolID string, buckets []*domain.PoolBucket) {
	if s.broadcaster == nil || len(buckets) == 0 {
		return
	}

	subject := s.PatchSubject(poolID)
	if err := s.broadcaster.Publish(ctx, subject, PoolPatch{Pool: poolID, Buckets: buckets}); err != nil {
		s.log.Errorf("Failed to broadcast patch for %s: %v", subject, err)
		s.metrics.BroadcastFailed()
	}
}

func (s *IndexerService) writeBuckets(ctx context.Context, buckets []*domain.PoolBucket) {
	if len(buckets) == 0 {
		return
	}
	if err := s.sink.WritePoolBuckets(ctx, buckets); err != nil {
		s.log.Errorf("Analytics sink write failed for %d pool buckets: %v", len(buckets), err)
	}
}
