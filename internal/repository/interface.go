package repository

import (
	"context"
	"errors"

	"github.com/itstarun264/eventsnap-stream/internal/domain"
)

var ErrEventNotFound = errors.New("event not found")

// EventRepository is the hub's view of the persisted event record. The wider
// platform owns event CRUD; the hub only reads records and mirrors the live
// flag.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	SetLive(ctx context.Context, id string, live bool) error
	ListLive(ctx context.Context) ([]domain.Event, error)
}
