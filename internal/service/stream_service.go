package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/itstarun264/eventsnap-stream/internal/audit"
	"github.com/itstarun264/eventsnap-stream/internal/cache"
	"github.com/itstarun264/eventsnap-stream/internal/domain"
	"github.com/itstarun264/eventsnap-stream/internal/hub"
	"github.com/itstarun264/eventsnap-stream/internal/kafka"
	"github.com/itstarun264/eventsnap-stream/internal/repository"
	"github.com/itstarun264/eventsnap-stream/internal/stream"
	"github.com/itstarun264/eventsnap-stream/pkg/log"
	"github.com/itstarun264/eventsnap-stream/pkg/pubsub"
)

// chunkLogInterval controls sampled progress logging on the chunk hot path.
// The first chunk of every session always logs.
const chunkLogInterval = 50

type streamService struct {
	hub       *hub.Hub
	state     *stream.StateStore
	eventRepo repository.EventRepository
	liveCache cache.LiveCache
	publisher pubsub.Publisher
	producer  kafka.EngagementProducer

	liveGroup singleflight.Group
}

// NewStreamService creates the relay service. liveCache, publisher and
// producer may be nil; everything on those paths is best-effort and the hub
// keeps relaying without them.
func NewStreamService(
	h *hub.Hub,
	state *stream.StateStore,
	eventRepo repository.EventRepository,
	liveCache cache.LiveCache,
	publisher pubsub.Publisher,
	producer kafka.EngagementProducer,
) StreamService {
	return &streamService{
		hub:       h,
		state:     state,
		eventRepo: eventRepo,
		liveCache: liveCache,
		publisher: publisher,
		producer:  producer,
	}
}

// HandleJoin subscribes the connection to an event room. A connection is in
// at most one room, so joining implies leaving the previous one. If a stream
// is already live the cached header chunk is unicast before the join takes
// effect, so it is the first thing the new viewer receives.
func (s *streamService) HandleJoin(ctx context.Context, client *hub.Client, msg *domain.JoinMessage) {
	eventID := msg.EventID.String()
	if eventID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "event_id is required"))
		return
	}

	if prev := client.Session.CurrentRoom(); prev != "" && prev != eventID {
		s.hub.Leave(client, prev)
	}

	// Replay whenever a header is cached, not only when the session is
	// flagged live: chunks can arrive without an explicit start, and the
	// late joiner needs the header either way.
	if header, ok := s.state.Header(eventID); ok {
		client.SendMessage(&domain.HeaderReplayMessage{
			Type:      domain.MsgTypeHeaderReplay,
			EventID:   msg.EventID,
			Audio:     header.Audio,
			MimeType:  header.MimeType,
			Timestamp: header.Timestamp,
			IsHeader:  true,
		})
		l := log.Ctx(ctx)
		l.Debug().
			Str(log.FieldClientID, client.ID).
			Str(log.FieldEventID, eventID).
			Msg("replayed stream header to late joiner")
	}

	s.hub.Join(client, eventID)
	client.Session.JoinRoom(eventID)
}

// HandleLeave unsubscribes the connection from an event room.
func (s *streamService) HandleLeave(ctx context.Context, client *hub.Client, msg *domain.LeaveMessage) {
	eventID := msg.EventID.String()
	if eventID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "event_id is required"))
		return
	}

	s.hub.Leave(client, eventID)
	if client.Session.CurrentRoom() == eventID {
		client.Session.LeaveRoom()
	}
}

// HandleDisconnect runs after the read loop ends. Room membership is already
// torn down by the hub unregister; this only settles the session record.
func (s *streamService) HandleDisconnect(ctx context.Context, client *hub.Client) {
	client.Session.LeaveRoom()
	l := log.Ctx(ctx)
	l.Info().Str(log.FieldClientID, client.ID).Msg("client disconnected")
}

// HandleStart begins a broadcast session for an event. The in-memory flip
// and the room announcement happen first; persistence, cache, pubsub and
// analytics follow best-effort so a slow backend never stalls the stream.
func (s *streamService) HandleStart(ctx context.Context, client *hub.Client, msg *domain.StartMessage) {
	eventID := msg.EventID.String()
	l := log.Ctx(ctx)
	if eventID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "event_id is required"))
		return
	}

	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			l.Warn().Str(log.FieldEventID, eventID).Msg("start requested for unknown event")
			return
		}
		l.Error().Err(err).Str(log.FieldEventID, eventID).Msg("failed to look up event")
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to start stream"))
		return
	}

	// A start on an already-live event resets the session: new counters,
	// new header. The broadcaster's reconnect depends on this.
	s.state.StartSession(eventID)
	startedAt := time.Now()

	s.hub.Broadcast(eventID, &domain.StreamStartedMessage{
		Type:    domain.MsgTypeStreamStarted,
		EventID: msg.EventID,
	}, nil)

	l.Info().
		Str(log.FieldEventID, eventID).
		Str(log.FieldClientID, client.ID).
		Msg("stream started")

	if err := s.eventRepo.SetLive(ctx, eventID, true); err != nil {
		l.Error().Err(err).Str(log.FieldEventID, eventID).Msg("failed to persist live flag")
	}
	if s.liveCache != nil {
		if err := s.liveCache.SetLive(ctx, eventID); err != nil {
			l.Warn().Err(err).Str(log.FieldEventID, eventID).Msg("failed to cache live flag")
		}
	}
	s.publishLifecycle(ctx, pubsub.EventStreamStarted, eventID, pubsub.StreamStartedPayload{
		EventID:   eventID,
		StartedAt: startedAt.UnixMilli(),
	})
	s.produceEngagement(ctx, &domain.EngagementEvent{
		EventID:   eventID,
		Kind:      domain.EngagementStreamStarted,
		ClientID:  client.ID,
		Timestamp: startedAt,
	})
	audit.Log(ctx, audit.ActionStartStream, eventID, "broadcast session started")
}

// HandleStop ends a broadcast session. The session state is torn down and a
// summary of what was streamed is announced and shipped to analytics.
func (s *streamService) HandleStop(ctx context.Context, client *hub.Client, msg *domain.StopMessage) {
	eventID := msg.EventID.String()
	l := log.Ctx(ctx)
	if eventID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "event_id is required"))
		return
	}

	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			l.Warn().Str(log.FieldEventID, eventID).Msg("stop requested for unknown event")
			return
		}
		l.Error().Err(err).Str(log.FieldEventID, eventID).Msg("failed to look up event")
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to stop stream"))
		return
	}

	// A stop without an in-memory session still clears the persisted flag
	// and tells the room; this is the only way out of a stale live flag
	// left by a restart.
	summary, hadSession := s.state.EndSession(eventID)
	if !hadSession {
		l.Warn().Str(log.FieldEventID, eventID).Msg("stop requested for event with no session")
	}

	s.hub.Broadcast(eventID, &domain.StreamStoppedMessage{
		Type:    domain.MsgTypeStreamStopped,
		EventID: msg.EventID,
	}, nil)

	if hadSession {
		l.Info().
			Str(log.FieldEventID, eventID).
			Str(log.FieldClientID, client.ID).
			Int64(log.FieldChunks, summary.ChunksSent).
			Int64(log.FieldBytes, summary.TotalBytes).
			Dur("duration", summary.Duration).
			Msg("stream stopped")
	}

	if err := s.eventRepo.SetLive(ctx, eventID, false); err != nil {
		l.Error().Err(err).Str(log.FieldEventID, eventID).Msg("failed to persist live flag")
	}
	if s.liveCache != nil {
		if err := s.liveCache.ClearLive(ctx, eventID); err != nil {
			l.Warn().Err(err).Str(log.FieldEventID, eventID).Msg("failed to clear cached live flag")
		}
	}
	s.publishLifecycle(ctx, pubsub.EventStreamStopped, eventID, pubsub.StreamStoppedPayload{
		EventID:    eventID,
		DurationMS: summary.Duration.Milliseconds(),
		Chunks:     summary.ChunksSent,
		Bytes:      summary.TotalBytes,
	})
	if !hadSession {
		audit.Log(ctx, audit.ActionStopStream, eventID, "broadcast session stopped")
		return
	}
	s.produceEngagement(ctx, &domain.EngagementEvent{
		EventID:   eventID,
		Kind:      domain.EngagementStreamStopped,
		ClientID:  client.ID,
		Chunks:    summary.ChunksSent,
		Bytes:     summary.TotalBytes,
		Timestamp: time.Now(),
	})
	audit.Log(ctx, audit.ActionStopStream, eventID, "broadcast session stopped")
}

// HandleVideoFrame relays a frame to the event room, excluding the sender.
// Frames are fire-and-forget: no counters, no acknowledgement.
func (s *streamService) HandleVideoFrame(ctx context.Context, client *hub.Client, msg *domain.VideoFrameMessage) {
	eventID := msg.EventID.String()
	if eventID == "" || msg.Image == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "event_id and image are required"))
		return
	}

	s.hub.Broadcast(eventID, &domain.VideoFrameOut{
		Type:    domain.MsgTypeVideoFrame,
		EventID: msg.EventID,
		Image:   msg.Image,
	}, client)
}

// HandleAudioChunk normalizes, counts and relays one compressed audio chunk,
// then acknowledges it to the sender. The first chunk of a session is cached
// as the stream header for late joiners.
func (s *streamService) HandleAudioChunk(ctx context.Context, client *hub.Client, msg *domain.AudioChunkMessage) {
	eventID := msg.EventID.String()
	if eventID == "" || msg.Audio == "" {
		client.SendMessage(domain.NewAckError("event_id and audio are required"))
		return
	}

	mimeType := msg.MimeType
	if mimeType == "" {
		mimeType = domain.DefaultAudioMimeType
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	audio := normalizeAudioPayload(msg.Audio, mimeType)

	count, cachedHeader := s.state.RecordChunk(eventID, audio, mimeType, msg.Timestamp)

	s.hub.Broadcast(eventID, &domain.AudioChunkOut{
		Type:      domain.MsgTypeAudioChunk,
		EventID:   msg.EventID,
		Audio:     audio,
		MimeType:  mimeType,
		Timestamp: msg.Timestamp,
	}, client)

	if count%chunkLogInterval == 1 {
		l := log.Ctx(ctx)
		l.Info().
			Str(log.FieldEventID, eventID).
			Int64(log.FieldChunks, count).
			Int("listeners", s.hub.MemberCount(eventID)).
			Bool("header_cached", cachedHeader).
			Msg("relaying audio chunks")
	}

	client.SendMessage(domain.NewAck())
}

// HandleAudioPCM relays raw uncompressed samples verbatim. Raw chunks count
// toward session totals but are never cached; PCM has no decoder header.
func (s *streamService) HandleAudioPCM(ctx context.Context, client *hub.Client, msg *domain.AudioPCMMessage) {
	eventID := msg.EventID.String()
	if eventID == "" || len(msg.Samples) == 0 {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "event_id and samples are required"))
		return
	}

	count := s.state.RecordRawChunk(eventID, len(msg.Samples))

	s.hub.Broadcast(eventID, &domain.AudioPCMOut{
		Type:    domain.MsgTypeAudioPCM,
		EventID: msg.EventID,
		Samples: msg.Samples,
	}, client)

	if count%chunkLogInterval == 1 {
		l := log.Ctx(ctx)
		l.Info().
			Str(log.FieldEventID, eventID).
			Int64(log.FieldChunks, count).
			Int("listeners", s.hub.MemberCount(eventID)).
			Msg("relaying raw audio chunks")
	}
}

// HandleReaction echoes a reaction to the whole room, sender included, so
// the sender sees their own reaction render with everyone else's.
func (s *streamService) HandleReaction(ctx context.Context, client *hub.Client, msg *domain.ReactionMessage) {
	eventID := msg.EventID.String()
	if eventID == "" || msg.Emoji == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "event_id and emoji are required"))
		return
	}

	s.hub.Broadcast(eventID, &domain.ReactionOut{
		Type:    domain.MsgTypeReaction,
		EventID: msg.EventID,
		Emoji:   msg.Emoji,
	}, nil)

	s.produceEngagement(ctx, &domain.EngagementEvent{
		EventID:   eventID,
		Kind:      domain.EngagementReaction,
		Emoji:     msg.Emoji,
		ClientID:  client.ID,
		Timestamp: time.Now(),
	})
}

// Diagnostics reports room membership and session counters for one event.
func (s *streamService) Diagnostics(ctx context.Context, eventID string) *DiagnosticsReport {
	clients := s.hub.Snapshot(eventID)
	report := &DiagnosticsReport{
		EventID:     eventID,
		Clients:     clients,
		ClientCount: len(clients),
		IsStreaming: s.state.IsLive(eventID),
	}
	if snap, ok := s.state.SnapshotOf(eventID); ok {
		report.Stats = &snap
	}
	return report
}

// ListLiveEvents returns the events currently flagged live. Concurrent
// callers collapse onto one lookup; the cache's id set is the fast path and
// the database the fallback.
func (s *streamService) ListLiveEvents(ctx context.Context) ([]domain.Event, error) {
	v, err, _ := s.liveGroup.Do("live-events", func() (interface{}, error) {
		if s.liveCache != nil {
			if ids, err := s.liveCache.LiveEventIDs(ctx); err == nil && len(ids) > 0 {
				events := make([]domain.Event, 0, len(ids))
				for _, id := range ids {
					evt, err := s.eventRepo.GetByID(ctx, id)
					if err != nil {
						continue
					}
					events = append(events, *evt)
				}
				return events, nil
			}
		}
		return s.eventRepo.ListLive(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Event), nil
}

func (s *streamService) publishLifecycle(ctx context.Context, eventType, eventID string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	evt, err := pubsub.NewEvent(eventType, eventID, payload)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, pubsub.StreamLifecycleChannel(eventID), evt); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldEventID, eventID).Msg("failed to publish lifecycle event")
	}
}

func (s *streamService) produceEngagement(ctx context.Context, evt *domain.EngagementEvent) {
	if s.producer == nil {
		return
	}
	if err := s.producer.ProduceEngagement(ctx, evt); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldEventID, evt.EventID).Msg("failed to produce engagement event")
	}
}

// normalizeAudioPayload ensures relayed audio is always a data URI. Clients
// may send either a bare base64 string or a full data URI; downstream
// players only handle the latter.
func normalizeAudioPayload(audio, mimeType string) string {
	if strings.HasPrefix(audio, "data:") {
		return audio
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, audio)
}
