package service

import (
	"context"

	"github.com/itstarun264/eventsnap-stream/internal/domain"
	"github.com/itstarun264/eventsnap-stream/internal/hub"
	"github.com/itstarun264/eventsnap-stream/internal/stream"
)

// DiagnosticsReport is the introspection view of one event room.
type DiagnosticsReport struct {
	EventID     string           `json:"event_id"`
	Clients     []string         `json:"clients"`
	ClientCount int              `json:"client_count"`
	IsStreaming bool             `json:"is_streaming"`
	Stats       *stream.Snapshot `json:"stats,omitempty"`
}

// StreamService owns the relay policy: which inbound messages mutate which
// state, who receives the fan-out, and what goes back to the sender.
type StreamService interface {
	HandleJoin(ctx context.Context, client *hub.Client, msg *domain.JoinMessage)
	HandleLeave(ctx context.Context, client *hub.Client, msg *domain.LeaveMessage)
	HandleDisconnect(ctx context.Context, client *hub.Client)
	HandleStart(ctx context.Context, client *hub.Client, msg *domain.StartMessage)
	HandleStop(ctx context.Context, client *hub.Client, msg *domain.StopMessage)
	HandleVideoFrame(ctx context.Context, client *hub.Client, msg *domain.VideoFrameMessage)
	HandleAudioChunk(ctx context.Context, client *hub.Client, msg *domain.AudioChunkMessage)
	HandleAudioPCM(ctx context.Context, client *hub.Client, msg *domain.AudioPCMMessage)
	HandleReaction(ctx context.Context, client *hub.Client, msg *domain.ReactionMessage)
	Diagnostics(ctx context.Context, eventID string) *DiagnosticsReport
	ListLiveEvents(ctx context.Context) ([]domain.Event, error)
}
