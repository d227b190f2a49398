// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"sync"
	"time"
)

// ConversationTurn is one finished question/answer cycle. Turns are
// immutable once appended to a SessionContext. Failed-but-exhausted
// turns are retained (with FailureReason set) so follow-up questions
// can still reference them.
type ConversationTurn struct {
	Question       string
	GeneratedQuery string
	AttemptCount   int
	ResultRowCount int
	Answer         string
	FailureReason  FailureKind
	CreatedAt      time.Time
}

// SessionContext is the per-conversation ordered history of turns,
// capped at the N most recent (oldest evicted first). It lives in
// memory only and dies with the conversation.
type SessionContext struct {
	mu       sync.Mutex
	turns    []ConversationTurn
	capacity int
}

// NewSessionContext creates a session history bounded to capacity turns.
func NewSessionContext(capacity int) *SessionContext {
	if capacity <= 0 {
		capacity = 20
	}
	return &SessionContext{capacity: capacity}
}

// Append records a finalized turn, evicting the oldest if at capacity.
func (s *SessionContext) Append(turn ConversationTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) >= s.capacity {
		s.turns = s.turns[1:]
	}
	s.turns = append(s.turns, turn)
}

// Recent returns up to k most recent turns, oldest first. The returned
// slice is a copy.
func (s *SessionContext) Recent(k int) []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k <= 0 || len(s.turns) == 0 {
		return nil
	}
	if k > len(s.turns) {
		k = len(s.turns)
	}
	out := make([]ConversationTurn, k)
	copy(out, s.turns[len(s.turns)-k:])
	return out
}

// Clear discards all history.
func (s *SessionContext) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// Len returns the number of retained turns.
func (s *SessionContext) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Session pairs a conversation's history with the lock that serializes
// its turns. A new question for the same conversation queues behind
// the in-flight one; distinct conversations run fully in parallel.
type Session struct {
	id      string
	turnMu  sync.Mutex
	history *SessionContext
}

// ID returns the conversation identifier.
func (s *Session) ID() string { return s.id }

// History returns the session's turn history.
func (s *Session) History() *SessionContext { return s.history }

// SessionRegistry maps conversation IDs to their sessions. Sessions
// are created on first use and held until cleared.
type SessionRegistry struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	turnCapacity int
}

// NewSessionRegistry creates a registry whose sessions retain up to
// turnCapacity turns each.
func NewSessionRegistry(turnCapacity int) *SessionRegistry {
	return &SessionRegistry{
		sessions:     make(map[string]*Session),
		turnCapacity: turnCapacity,
	}
}

// Session returns the session for the conversation, creating it if
// this is the first question.
func (r *SessionRegistry) Session(conversationID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[conversationID]; ok {
		return s
	}
	s := &Session{
		id:      conversationID,
		history: NewSessionContext(r.turnCapacity),
	}
	r.sessions[conversationID] = s
	return s
}

// Clear removes a conversation and its history entirely. Returns false
// if the conversation was unknown.
func (r *SessionRegistry) Clear(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[conversationID]; !ok {
		return false
	}
	delete(r.sessions, conversationID)
	return true
}
