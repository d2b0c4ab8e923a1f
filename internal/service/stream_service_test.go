package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/itstarun264/eventsnap-stream/internal/config"
	"github.com/itstarun264/eventsnap-stream/internal/domain"
	"github.com/itstarun264/eventsnap-stream/internal/hub"
	"github.com/itstarun264/eventsnap-stream/internal/repository"
	"github.com/itstarun264/eventsnap-stream/internal/stream"
	"github.com/itstarun264/eventsnap-stream/pkg/pubsub"
)

// fakeEventRepo serves a fixed set of events from memory.
type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.Event
}

func newFakeEventRepo(ids ...string) *fakeEventRepo {
	r := &fakeEventRepo{events: make(map[string]*domain.Event)}
	for _, id := range ids {
		r.events[id] = &domain.Event{ID: id, Name: "event " + id, Status: "approved"}
	}
	return r
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evt, ok := r.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	cp := *evt
	return &cp, nil
}

func (r *fakeEventRepo) SetLive(ctx context.Context, id string, live bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	evt, ok := r.events[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	evt.IsLive = live
	return nil
}

func (r *fakeEventRepo) ListLive(ctx context.Context) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, evt := range r.events {
		if evt.IsLive {
			out = append(out, *evt)
		}
	}
	if out == nil {
		out = []domain.Event{}
	}
	return out, nil
}

// fakeLiveCache records live ids in memory.
type fakeLiveCache struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newFakeLiveCache() *fakeLiveCache {
	return &fakeLiveCache{ids: make(map[string]struct{})}
}

func (c *fakeLiveCache) SetLive(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[eventID] = struct{}{}
	return nil
}

func (c *fakeLiveCache) ClearLive(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, eventID)
	return nil
}

func (c *fakeLiveCache) LiveEventIDs(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	return out, nil
}

func (c *fakeLiveCache) Close() error { return nil }

// fakePublisher collects lifecycle announcements.
type fakePublisher struct {
	mu     sync.Mutex
	events []*pubsub.Event
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []*pubsub.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*pubsub.Event(nil), p.events...)
}

// fakeProducer collects engagement events.
type fakeProducer struct {
	mu     sync.Mutex
	events []*domain.EngagementEvent
}

func (p *fakeProducer) ProduceEngagement(ctx context.Context, evt *domain.EngagementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) produced() []*domain.EngagementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.EngagementEvent(nil), p.events...)
}

type fixture struct {
	hub       *hub.Hub
	state     *stream.StateStore
	repo      *fakeEventRepo
	cache     *fakeLiveCache
	publisher *fakePublisher
	producer  *fakeProducer
	svc       StreamService
}

func newFixture(eventIDs ...string) *fixture {
	f := &fixture{
		hub:       hub.NewHub(),
		state:     stream.NewStateStore(),
		repo:      newFakeEventRepo(eventIDs...),
		cache:     newFakeLiveCache(),
		publisher: &fakePublisher{},
		producer:  &fakeProducer{},
	}
	f.svc = NewStreamService(f.hub, f.state, f.repo, f.cache, f.publisher, f.producer)
	return f
}

func (f *fixture) connect(t *testing.T, id string) *hub.Client {
	t.Helper()
	c := hub.NewClient(id, f.hub, nil, config.WebSocketConfig{MaxMessageSize: 1 << 20})
	f.hub.Register(c)
	return c
}

func (f *fixture) join(t *testing.T, c *hub.Client, eventID string) {
	t.Helper()
	f.svc.HandleJoin(context.Background(), c, &domain.JoinMessage{
		Type:    domain.MsgTypeJoin,
		EventID: domain.EventID(eventID),
	})
}

func drain(t *testing.T, c *hub.Client) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for {
		select {
		case raw := <-c.Send:
			var msg map[string]interface{}
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("undecodable outbound message %s: %v", raw, err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func typesOf(msgs []map[string]interface{}) []string {
	var out []string
	for _, m := range msgs {
		t, _ := m["type"].(string)
		out = append(out, t)
	}
	return out
}

func TestAudioChunkRelayAndAck(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	a := f.connect(t, "viewer-a")
	b := f.connect(t, "broadcaster")
	f.join(t, a, "7")
	f.join(t, b, "7")

	f.svc.HandleStart(ctx, b, &domain.StartMessage{Type: domain.MsgTypeStart, EventID: "7"})
	drain(t, a)
	drain(t, b)

	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type:    domain.MsgTypeAudioChunk,
		EventID: "7",
		Audio:   "AAAA",
	})

	// The viewer gets exactly one relayed chunk, normalized to a data URI
	// with the default mime type.
	aMsgs := drain(t, a)
	if len(aMsgs) != 1 {
		t.Fatalf("viewer got %d messages (%v), want 1", len(aMsgs), typesOf(aMsgs))
	}
	if got := aMsgs[0]["audio"]; got != "data:audio/webm;base64,AAAA" {
		t.Fatalf("relayed audio = %v, want normalized data URI", got)
	}
	if got := aMsgs[0]["mime_type"]; got != "audio/webm" {
		t.Fatalf("relayed mime = %v, want audio/webm", got)
	}

	// The sender gets only the ack, never its own chunk back.
	bMsgs := drain(t, b)
	if len(bMsgs) != 1 || bMsgs[0]["type"] != domain.MsgTypeAudioAck {
		t.Fatalf("sender got %v, want a single audio_ack", typesOf(bMsgs))
	}
	if bMsgs[0]["status"] != domain.AckStatusSuccess {
		t.Fatalf("ack status = %v, want success", bMsgs[0]["status"])
	}

	// Counters advanced and the first chunk became the cached header.
	snap, ok := f.state.SnapshotOf("7")
	if !ok || snap.ChunksSent != 1 {
		t.Fatalf("snapshot chunks = %d (ok=%v), want 1", snap.ChunksSent, ok)
	}
	if _, ok := f.state.Header("7"); !ok {
		t.Fatal("first chunk was not cached as header")
	}
}

func TestLateJoinerReceivesHeaderFirst(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	b := f.connect(t, "broadcaster")
	f.join(t, b, "7")
	f.svc.HandleStart(ctx, b, &domain.StartMessage{Type: domain.MsgTypeStart, EventID: "7"})
	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type: domain.MsgTypeAudioChunk, EventID: "7", Audio: "AAAA", Timestamp: 100,
	})
	drain(t, b)

	c := f.connect(t, "late-joiner")
	f.join(t, c, "7")

	// Header replay lands before any live traffic.
	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type: domain.MsgTypeAudioChunk, EventID: "7", Audio: "BBBB", Timestamp: 200,
	})

	cMsgs := drain(t, c)
	if len(cMsgs) != 2 {
		t.Fatalf("late joiner got %d messages (%v), want 2", len(cMsgs), typesOf(cMsgs))
	}
	if cMsgs[0]["type"] != domain.MsgTypeHeaderReplay {
		t.Fatalf("first message = %v, want header_replay", cMsgs[0]["type"])
	}
	if cMsgs[0]["is_header"] != true {
		t.Fatal("header replay missing is_header flag")
	}
	if got := cMsgs[0]["audio"]; got != "data:audio/webm;base64,AAAA" {
		t.Fatalf("replayed header = %v, want first chunk", got)
	}
	if cMsgs[1]["type"] != domain.MsgTypeAudioChunk {
		t.Fatalf("second message = %v, want audio_chunk", cMsgs[1]["type"])
	}
}

func TestLateJoinerGetsHeaderWithoutExplicitStart(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	// Chunks can arrive with no start message at all; the header cache and
	// the replay must not depend on the live flag.
	a := f.connect(t, "viewer-a")
	b := f.connect(t, "broadcaster")
	f.join(t, a, "7")
	f.join(t, b, "7")

	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type: domain.MsgTypeAudioChunk, EventID: "7", Audio: "AAAA", Timestamp: 100,
	})
	drain(t, a)
	drain(t, b)

	c := f.connect(t, "late-joiner")
	f.join(t, c, "7")

	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type: domain.MsgTypeAudioChunk, EventID: "7", Audio: "BBBB", Timestamp: 200,
	})

	cMsgs := drain(t, c)
	if len(cMsgs) != 2 {
		t.Fatalf("late joiner got %d messages (%v), want header then chunk", len(cMsgs), typesOf(cMsgs))
	}
	if cMsgs[0]["type"] != domain.MsgTypeHeaderReplay || cMsgs[0]["is_header"] != true {
		t.Fatalf("first message = %+v, want header_replay", cMsgs[0])
	}
	if got := cMsgs[0]["audio"]; got != "data:audio/webm;base64,AAAA" {
		t.Fatalf("replayed header = %v, want first chunk", got)
	}
	if cMsgs[1]["type"] != domain.MsgTypeAudioChunk {
		t.Fatalf("second message = %v, want audio_chunk", cMsgs[1]["type"])
	}

	// The earlier viewer gets exactly the one live chunk, the sender only
	// its ack.
	if msgs := drain(t, a); len(msgs) != 1 || msgs[0]["type"] != domain.MsgTypeAudioChunk {
		t.Fatalf("viewer got %v, want one audio_chunk", typesOf(msgs))
	}
	if msgs := drain(t, b); len(msgs) != 1 || msgs[0]["type"] != domain.MsgTypeAudioAck {
		t.Fatalf("sender got %v, want one audio_ack", typesOf(msgs))
	}
}

func TestJoinBeforeStreamGetsNoReplay(t *testing.T) {
	f := newFixture("7")

	c := f.connect(t, "early")
	f.join(t, c, "7")

	if msgs := drain(t, c); len(msgs) != 0 {
		t.Fatalf("early joiner got %v, want nothing", typesOf(msgs))
	}
}

func TestJoinImpliesLeavingPreviousRoom(t *testing.T) {
	f := newFixture("7", "8")
	ctx := context.Background()

	mover := f.connect(t, "mover")
	stayer := f.connect(t, "stayer")
	f.join(t, mover, "7")
	f.join(t, stayer, "7")
	f.join(t, mover, "8")

	// A relay in the old room must no longer reach the mover.
	f.svc.HandleVideoFrame(ctx, stayer, &domain.VideoFrameMessage{
		Type: domain.MsgTypeVideoFrame, EventID: "7", Image: "data:image/jpeg;base64,xx",
	})

	if msgs := drain(t, mover); len(msgs) != 0 {
		t.Fatalf("mover still got %v from old room", typesOf(msgs))
	}
	if got := mover.Session.CurrentRoom(); got != "8" {
		t.Fatalf("session room = %q, want 8", got)
	}
}

func TestStartUnknownEventIsNoop(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	b := f.connect(t, "broadcaster")
	f.join(t, b, "7")
	drain(t, b)

	f.svc.HandleStart(ctx, b, &domain.StartMessage{Type: domain.MsgTypeStart, EventID: "999"})

	if f.state.IsLive("999") {
		t.Fatal("unknown event went live")
	}
	if msgs := drain(t, b); len(msgs) != 0 {
		t.Fatalf("unknown start produced client traffic: %v", typesOf(msgs))
	}
	if n := len(f.publisher.published()); n != 0 {
		t.Fatalf("unknown start published %d lifecycle events", n)
	}
}

func TestStartAnnouncesAndPersists(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	b := f.connect(t, "broadcaster")
	v := f.connect(t, "viewer")
	f.join(t, b, "7")
	f.join(t, v, "7")

	f.svc.HandleStart(ctx, b, &domain.StartMessage{Type: domain.MsgTypeStart, EventID: "7"})

	// The announcement reaches the whole room, sender included.
	for _, c := range []*hub.Client{b, v} {
		msgs := drain(t, c)
		if len(msgs) != 1 || msgs[0]["type"] != domain.MsgTypeStreamStarted {
			t.Fatalf("client %s got %v, want stream_started", c.ID, typesOf(msgs))
		}
	}

	evt, err := f.repo.GetByID(ctx, "7")
	if err != nil || !evt.IsLive {
		t.Fatalf("live flag not persisted: evt=%+v err=%v", evt, err)
	}
	ids, _ := f.cache.LiveEventIDs(ctx)
	if len(ids) != 1 || ids[0] != "7" {
		t.Fatalf("cache ids = %v, want [7]", ids)
	}
	published := f.publisher.published()
	if len(published) != 1 || published[0].Type != pubsub.EventStreamStarted {
		t.Fatalf("published = %v, want one stream.started", published)
	}
}

func TestStopSummarizesAndTearsDown(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	b := f.connect(t, "broadcaster")
	v := f.connect(t, "viewer")
	f.join(t, b, "7")
	f.join(t, v, "7")

	f.svc.HandleStart(ctx, b, &domain.StartMessage{Type: domain.MsgTypeStart, EventID: "7"})
	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type: domain.MsgTypeAudioChunk, EventID: "7", Audio: "AAAA",
	})
	drain(t, b)
	drain(t, v)

	f.svc.HandleStop(ctx, b, &domain.StopMessage{Type: domain.MsgTypeStop, EventID: "7"})

	for _, c := range []*hub.Client{b, v} {
		msgs := drain(t, c)
		if len(msgs) != 1 || msgs[0]["type"] != domain.MsgTypeStreamStopped {
			t.Fatalf("client %s got %v, want stream_stopped", c.ID, typesOf(msgs))
		}
	}

	if f.state.Len() != 0 {
		t.Fatalf("session state remaining = %d, want 0", f.state.Len())
	}
	evt, _ := f.repo.GetByID(ctx, "7")
	if evt.IsLive {
		t.Fatal("live flag not cleared")
	}
	ids, _ := f.cache.LiveEventIDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("cache ids = %v, want empty", ids)
	}

	produced := f.producer.produced()
	var stopped *domain.EngagementEvent
	for _, e := range produced {
		if e.Kind == domain.EngagementStreamStopped {
			stopped = e
		}
	}
	if stopped == nil {
		t.Fatalf("no stream_stopped engagement event in %v", produced)
	}
	if stopped.Chunks != 1 {
		t.Fatalf("stopped summary chunks = %d, want 1", stopped.Chunks)
	}
}

func TestStopWithoutSessionStillClearsLiveFlag(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	// A restart can leave the persisted flag stuck at live with no
	// in-memory session behind it. Stop is the way out.
	f.repo.SetLive(ctx, "7", true)
	f.cache.SetLive(ctx, "7")

	b := f.connect(t, "broadcaster")
	v := f.connect(t, "viewer")
	f.join(t, b, "7")
	f.join(t, v, "7")

	f.svc.HandleStop(ctx, b, &domain.StopMessage{Type: domain.MsgTypeStop, EventID: "7"})

	for _, c := range []*hub.Client{b, v} {
		msgs := drain(t, c)
		if len(msgs) != 1 || msgs[0]["type"] != domain.MsgTypeStreamStopped {
			t.Fatalf("client %s got %v, want stream_stopped", c.ID, typesOf(msgs))
		}
	}
	evt, _ := f.repo.GetByID(ctx, "7")
	if evt.IsLive {
		t.Fatal("stale live flag not cleared")
	}
	ids, _ := f.cache.LiveEventIDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("cache ids = %v, want empty", ids)
	}
	// No session means no summary to ship to analytics.
	for _, e := range f.producer.produced() {
		if e.Kind == domain.EngagementStreamStopped {
			t.Fatalf("sessionless stop produced a summary event: %+v", e)
		}
	}
}

func TestStopUnknownEventIsNoop(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	b := f.connect(t, "broadcaster")
	f.join(t, b, "7")
	drain(t, b)

	f.svc.HandleStop(ctx, b, &domain.StopMessage{Type: domain.MsgTypeStop, EventID: "999"})

	if msgs := drain(t, b); len(msgs) != 0 {
		t.Fatalf("unknown stop produced %v", typesOf(msgs))
	}
	if n := len(f.publisher.published()); n != 0 {
		t.Fatalf("unknown stop published %d lifecycle events", n)
	}
}

func TestReactionEchoesToSender(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	a := f.connect(t, "a")
	b := f.connect(t, "b")
	f.join(t, a, "7")
	f.join(t, b, "7")

	f.svc.HandleReaction(ctx, a, &domain.ReactionMessage{
		Type: domain.MsgTypeReaction, EventID: "7", Emoji: "🎉",
	})

	for _, c := range []*hub.Client{a, b} {
		msgs := drain(t, c)
		if len(msgs) != 1 || msgs[0]["type"] != domain.MsgTypeReaction {
			t.Fatalf("client %s got %v, want one reaction", c.ID, typesOf(msgs))
		}
		if msgs[0]["emoji"] != "🎉" {
			t.Fatalf("emoji = %v", msgs[0]["emoji"])
		}
	}

	produced := f.producer.produced()
	if len(produced) != 1 || produced[0].Kind != domain.EngagementReaction {
		t.Fatalf("produced = %v, want one reaction engagement", produced)
	}
}

func TestMalformedChunkErrorsSenderOnly(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	a := f.connect(t, "a")
	b := f.connect(t, "b")
	f.join(t, a, "7")
	f.join(t, b, "7")

	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type: domain.MsgTypeAudioChunk, EventID: "7", Audio: "",
	})

	bMsgs := drain(t, b)
	if len(bMsgs) != 1 || bMsgs[0]["type"] != domain.MsgTypeAudioAck {
		t.Fatalf("sender got %v, want one error ack", typesOf(bMsgs))
	}
	if bMsgs[0]["status"] != domain.AckStatusError {
		t.Fatalf("ack status = %v, want error", bMsgs[0]["status"])
	}
	if msgs := drain(t, a); len(msgs) != 0 {
		t.Fatalf("bystander got %v from malformed chunk", typesOf(msgs))
	}
}

func TestDataURIPassesThroughUnchanged(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	a := f.connect(t, "a")
	b := f.connect(t, "b")
	f.join(t, a, "7")
	f.join(t, b, "7")

	uri := "data:audio/ogg;base64,CCCC"
	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type: domain.MsgTypeAudioChunk, EventID: "7", Audio: uri, MimeType: "audio/ogg",
	})

	msgs := drain(t, a)
	if len(msgs) != 1 || msgs[0]["audio"] != uri {
		t.Fatalf("relayed audio = %v, want unchanged %q", msgs, uri)
	}
}

func TestPCMChunkRelaysVerbatim(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	a := f.connect(t, "a")
	b := f.connect(t, "b")
	f.join(t, a, "7")
	f.join(t, b, "7")

	samples := json.RawMessage(`[0.1,-0.2,0.3]`)
	f.svc.HandleAudioPCM(ctx, b, &domain.AudioPCMMessage{
		Type: domain.MsgTypeAudioPCM, EventID: "7", Samples: samples,
	})

	msgs := drain(t, a)
	if len(msgs) != 1 {
		t.Fatalf("viewer got %d messages, want 1", len(msgs))
	}
	got, _ := json.Marshal(msgs[0]["samples"])
	if !strings.Contains(string(got), "0.1") {
		t.Fatalf("samples not relayed: %s", got)
	}
	// No ack for raw chunks, and nothing back to the sender.
	if bMsgs := drain(t, b); len(bMsgs) != 0 {
		t.Fatalf("sender got %v, want nothing", typesOf(bMsgs))
	}
	if _, ok := f.state.Header("7"); ok {
		t.Fatal("raw chunk cached a header")
	}
}

func TestDiagnosticsReport(t *testing.T) {
	f := newFixture("7")
	ctx := context.Background()

	a := f.connect(t, "a")
	b := f.connect(t, "b")
	f.join(t, a, "7")
	f.join(t, b, "7")
	f.svc.HandleStart(ctx, b, &domain.StartMessage{Type: domain.MsgTypeStart, EventID: "7"})
	f.svc.HandleAudioChunk(ctx, b, &domain.AudioChunkMessage{
		Type: domain.MsgTypeAudioChunk, EventID: "7", Audio: "AAAA",
	})

	report := f.svc.Diagnostics(ctx, "7")
	if report.ClientCount != 2 {
		t.Fatalf("client count = %d, want 2", report.ClientCount)
	}
	if !report.IsStreaming {
		t.Fatal("diagnostics says not streaming")
	}
	if report.Stats == nil || report.Stats.ChunksSent != 1 {
		t.Fatalf("stats = %+v, want 1 chunk", report.Stats)
	}

	empty := f.svc.Diagnostics(ctx, "missing")
	if empty.ClientCount != 0 || empty.IsStreaming || empty.Stats != nil {
		t.Fatalf("diagnostics for missing room = %+v, want empty", empty)
	}
}

func TestListLiveEvents(t *testing.T) {
	f := newFixture("7", "8")
	ctx := context.Background()

	b := f.connect(t, "broadcaster")
	f.join(t, b, "7")
	f.svc.HandleStart(ctx, b, &domain.StartMessage{Type: domain.MsgTypeStart, EventID: "7"})

	events, err := f.svc.ListLiveEvents(ctx)
	if err != nil {
		t.Fatalf("ListLiveEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "7" {
		t.Fatalf("live events = %+v, want event 7", events)
	}

	f.svc.HandleStop(ctx, b, &domain.StopMessage{Type: domain.MsgTypeStop, EventID: "7"})
	events, err = f.svc.ListLiveEvents(ctx)
	if err != nil {
		t.Fatalf("ListLiveEvents after stop: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("live events after stop = %+v, want none", events)
	}
}
