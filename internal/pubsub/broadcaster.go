package pubsub

import "context"

// Broadcaster fans out pool patches to downstream subscribers
type Broadcaster interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Health(ctx context.Context) error
}

// PoolPatchSubject is "<prefix>.pool.<pool id>", so consumers can follow one
// pool or all of them with "<prefix>.pool.>"
func PoolPatchSubject(prefix, poolID string) string {
	return prefix + ".pool." + poolID
}
