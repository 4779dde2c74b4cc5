package dedupe

import "context"

// General contract for event dedupe (redis, in-memory, bloom prefilter).
// An id is checked before handling and marked only after the event was fully
// applied, so a failed event is redelivered and applied again.
type Deduper interface {
	// true -> already applied, the event can be skipped
	IsDuplicate(ctx context.Context, id string) (bool, error)
	MarkSeen(ctx context.Context, id string) error
	Health(ctx context.Context) error
}
