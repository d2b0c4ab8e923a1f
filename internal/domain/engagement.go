package domain

import "time"

// Engagement event kinds produced to the analytics pipeline.
const (
	EngagementReaction      = "reaction"
	EngagementStreamStarted = "stream_started"
	EngagementStreamStopped = "stream_stopped"
)

// EngagementEvent is what the hub emits to the analytics topic. Downstream
// consumers aggregate these per event; the hub itself never reads them back.
type EngagementEvent struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	Emoji     string    `json:"emoji,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Chunks    int64     `json:"chunks,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
