package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/itstarun264/eventsnap-stream/internal/domain"
	"github.com/itstarun264/eventsnap-stream/pkg/log"
)

// GormEventRepository implements EventRepository using GORM.
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GORM-based event repository.
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// GetByID retrieves an event by ID.
func (r *GormEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	l := log.Ctx(ctx)

	var model domain.EventModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldEventID, id).Msg("failed to get event by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// SetLive updates the persisted live flag for an event.
func (r *GormEventRepository) SetLive(ctx context.Context, id string, live bool) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.EventModel{}).
		Where("id = ?", id).
		Update("is_live", live)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldEventID, id).Msg("failed to update live flag")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}

	l.Debug().Str(log.FieldEventID, id).Bool("is_live", live).Msg("live flag updated")
	return nil
}

// ListLive retrieves all events currently flagged live.
func (r *GormEventRepository) ListLive(ctx context.Context) ([]domain.Event, error) {
	l := log.Ctx(ctx)

	var models []domain.EventModel
	if err := r.db.WithContext(ctx).Where("is_live = ?", true).Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list live events")
		return nil, err
	}

	events := make([]domain.Event, len(models))
	for i, model := range models {
		events[i] = *model.ToDomain()
	}
	return events, nil
}
