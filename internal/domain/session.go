package domain

import (
	"sync"
	"time"
)

// Session tracks what one connection is doing: which event room it is in and
// when it was last heard from.
type Session struct {
	ID             string
	CurrentEventID string
	CreatedAt      time.Time
	LastActiveAt   time.Time
	mu             sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

func (s *Session) JoinRoom(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentEventID = eventID
	s.LastActiveAt = time.Now()
}

func (s *Session) LeaveRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentEventID = ""
	s.LastActiveAt = time.Now()
}

func (s *Session) CurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentEventID
}

func (s *Session) IsInRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentEventID != ""
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
