package stream

import (
	"sync"
	"time"
)

// Header is the cached first audio fragment of a stream. Streaming codecs
// such as webm/opus can only start decoding from it, so a viewer joining
// mid-stream gets it replayed before any live traffic.
type Header struct {
	Audio     string
	MimeType  string
	Timestamp int64
}

// Snapshot is a read-only view of one event's session counters.
type Snapshot struct {
	Live       bool      `json:"live"`
	ChunksSent int64     `json:"chunks_sent"`
	TotalBytes int64     `json:"total_bytes"`
	StartedAt  time.Time `json:"started_at"`
}

// Summary is what remains of a session after it ends.
type Summary struct {
	EventID    string
	Duration   time.Duration
	ChunksSent int64
	TotalBytes int64
}

// session is the mutable per-event state. Each session has its own lock so
// concurrent streams never contend with each other.
type session struct {
	mu         sync.Mutex
	live       bool
	chunksSent int64
	totalBytes int64
	startedAt  time.Time
	header     *Header
}

// StateStore keys per-event session state by event id. Entries are created
// on first use and torn down when the session ends, so an idle hub holds no
// per-event state at all.
type StateStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewStateStore() *StateStore {
	return &StateStore{sessions: make(map[string]*session)}
}

// StartSession marks the event live and resets counters and the cached
// header. Calling it on an already-live session resets unconditionally.
func (s *StateStore) StartSession(eventID string) {
	entry := s.getOrCreate(eventID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.live = true
	entry.chunksSent = 0
	entry.totalBytes = 0
	entry.startedAt = time.Now()
	entry.header = nil
}

// EndSession tears down the event's session state and returns a summary of
// what was streamed. The second return is false if no session existed.
func (s *StateStore) EndSession(eventID string) (Summary, bool) {
	s.mu.Lock()
	entry, ok := s.sessions[eventID]
	delete(s.sessions, eventID)
	s.mu.Unlock()
	if !ok {
		return Summary{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return Summary{
		EventID:    eventID,
		Duration:   time.Since(entry.startedAt),
		ChunksSent: entry.chunksSent,
		TotalBytes: entry.totalBytes,
	}, true
}

// RecordChunk counts a normalized audio chunk and caches it as the header if
// none is cached since the last reset. Raw chunks share the counter, so the
// header slot itself is the guard, not the count. Returns the running chunk
// count and whether this chunk became the header.
func (s *StateStore) RecordChunk(eventID, audio, mimeType string, timestamp int64) (int64, bool) {
	entry := s.getOrCreate(eventID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.chunksSent++
	entry.totalBytes += int64(len(audio))

	cached := false
	if entry.header == nil {
		entry.header = &Header{Audio: audio, MimeType: mimeType, Timestamp: timestamp}
		cached = true
	}
	return entry.chunksSent, cached
}

// RecordRawChunk counts an uncompressed chunk. Raw samples have no header
// dependency, so nothing is cached.
func (s *StateStore) RecordRawChunk(eventID string, size int) int64 {
	entry := s.getOrCreate(eventID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.chunksSent++
	entry.totalBytes += int64(size)
	return entry.chunksSent
}

// Header returns the cached header chunk, if any.
func (s *StateStore) Header(eventID string) (Header, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[eventID]
	s.mu.RUnlock()
	if !ok {
		return Header{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.header == nil {
		return Header{}, false
	}
	return *entry.header, true
}

// IsLive reports whether the event is currently flagged live in memory.
func (s *StateStore) IsLive(eventID string) bool {
	s.mu.RLock()
	entry, ok := s.sessions[eventID]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.live
}

// SnapshotOf returns the current counters for an event. The second return is
// false if no session state exists.
func (s *StateStore) SnapshotOf(eventID string) (Snapshot, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[eventID]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return Snapshot{
		Live:       entry.live,
		ChunksSent: entry.chunksSent,
		TotalBytes: entry.totalBytes,
		StartedAt:  entry.startedAt,
	}, true
}

// Len reports how many events currently hold session state.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *StateStore) getOrCreate(eventID string) *session {
	s.mu.RLock()
	entry, ok := s.sessions[eventID]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok = s.sessions[eventID]; ok {
		return entry
	}
	entry = &session{startedAt: time.Now()}
	s.sessions[eventID] = entry
	return entry
}
