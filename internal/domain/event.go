package domain

import "time"

// Event is the persisted event record owned by the wider platform. The hub
// only reads it and mirrors the live flag; everything else belongs to the
// event CRUD surface.
type Event struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Venue     string     `json:"venue,omitempty"`
	EventType string     `json:"event_type"`
	Status    string     `json:"status"`
	IsLive    bool       `json:"is_live"`
	EventDate time.Time  `json:"event_date"`
	CreatedAt time.Time  `json:"created_at"`
}

// EventModel is the GORM model for the events table.
type EventModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Name      string    `gorm:"type:varchar(200);not null"`
	Venue     string    `gorm:"type:varchar(200)"`
	EventType string    `gorm:"type:varchar(20);default:'public'"`
	Status    string    `gorm:"type:varchar(20);index;default:'pending'"`
	IsLive    bool      `gorm:"index;default:false"`
	EventDate time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for EventModel.
func (EventModel) TableName() string {
	return "events"
}

// ToDomain converts EventModel to domain Event.
func (m *EventModel) ToDomain() *Event {
	return &Event{
		ID:        m.ID,
		Name:      m.Name,
		Venue:     m.Venue,
		EventType: m.EventType,
		Status:    m.Status,
		IsLive:    m.IsLive,
		EventDate: m.EventDate,
		CreatedAt: m.CreatedAt,
	}
}
