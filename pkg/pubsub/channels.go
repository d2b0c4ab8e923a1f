package pubsub

import "fmt"

// Channel naming conventions for stream lifecycle announcements.
const (
	// Hub -> platform channels
	ChannelStreamLifecycle = "stream:event:%s:lifecycle"
)

// Event types published by the stream hub.
const (
	EventStreamStarted = "stream.started"
	EventStreamStopped = "stream.stopped"
)

// StreamLifecycleChannel returns the lifecycle channel name for an event.
func StreamLifecycleChannel(eventID string) string {
	return fmt.Sprintf(ChannelStreamLifecycle, eventID)
}

// StreamStartedPayload is published when a broadcast goes live.
type StreamStartedPayload struct {
	EventID   string `json:"event_id"`
	StartedAt int64  `json:"started_at"`
}

// StreamStoppedPayload is published when a broadcast ends.
type StreamStoppedPayload struct {
	EventID    string `json:"event_id"`
	DurationMS int64  `json:"duration_ms"`
	Chunks     int64  `json:"chunks"`
	Bytes      int64  `json:"bytes"`
}
