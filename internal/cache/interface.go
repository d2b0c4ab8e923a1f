package cache

import "context"

// LiveCache tracks which events are currently live so read paths can answer
// without touching the database. All writes on the lifecycle path are
// best-effort.
type LiveCache interface {
	SetLive(ctx context.Context, eventID string) error
	ClearLive(ctx context.Context, eventID string) error
	LiveEventIDs(ctx context.Context) ([]string, error)
	Close() error
}
