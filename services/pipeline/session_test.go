// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"
	"testing"
)

func TestSessionContext_FIFOEviction(t *testing.T) {
	s := NewSessionContext(3)

	for i := 1; i <= 5; i++ {
		s.Append(ConversationTurn{Question: fmt.Sprintf("q%d", i)})
	}

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}

	recent := s.Recent(3)
	want := []string{"q3", "q4", "q5"}
	for i, turn := range recent {
		if turn.Question != want[i] {
			t.Errorf("recent[%d].Question = %q, want %q", i, turn.Question, want[i])
		}
	}
}

func TestSessionContext_RecentOrderAndBounds(t *testing.T) {
	s := NewSessionContext(10)
	s.Append(ConversationTurn{Question: "first"})
	s.Append(ConversationTurn{Question: "second"})

	t.Run("oldest first", func(t *testing.T) {
		recent := s.Recent(2)
		if len(recent) != 2 || recent[0].Question != "first" || recent[1].Question != "second" {
			t.Errorf("unexpected order: %+v", recent)
		}
	})

	t.Run("k larger than history", func(t *testing.T) {
		recent := s.Recent(10)
		if len(recent) != 2 {
			t.Errorf("Recent(10) returned %d turns, want 2", len(recent))
		}
	})

	t.Run("non-positive k", func(t *testing.T) {
		if got := s.Recent(0); got != nil {
			t.Errorf("Recent(0) = %+v, want nil", got)
		}
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		recent := s.Recent(2)
		recent[0].Question = "mutated"
		if s.Recent(2)[0].Question != "first" {
			t.Error("mutating the returned slice changed the history")
		}
	})
}

func TestSessionContext_Clear(t *testing.T) {
	s := NewSessionContext(5)
	s.Append(ConversationTurn{Question: "q"})
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
}

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry(5)

	t.Run("same id returns same session", func(t *testing.T) {
		a := r.Session("conv-1")
		b := r.Session("conv-1")
		if a != b {
			t.Error("two lookups for the same conversation returned different sessions")
		}
	})

	t.Run("distinct ids are isolated", func(t *testing.T) {
		a := r.Session("conv-a")
		b := r.Session("conv-b")
		a.History().Append(ConversationTurn{Question: "only in a"})
		if b.History().Len() != 0 {
			t.Error("history leaked across conversations")
		}
	})

	t.Run("clear removes the session", func(t *testing.T) {
		r.Session("conv-x").History().Append(ConversationTurn{Question: "q"})
		if !r.Clear("conv-x") {
			t.Fatal("Clear returned false for a known session")
		}
		if r.Session("conv-x").History().Len() != 0 {
			t.Error("cleared session still has history")
		}
	})

	t.Run("clear unknown session", func(t *testing.T) {
		if r.Clear("never-seen") {
			t.Error("Clear returned true for an unknown session")
		}
	})
}
