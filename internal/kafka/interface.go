package kafka

import (
	"context"

	"github.com/itstarun264/eventsnap-stream/internal/domain"
)

type EngagementProducer interface {
	ProduceEngagement(ctx context.Context, evt *domain.EngagementEvent) error
	Close() error
}
