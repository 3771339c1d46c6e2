package memory

import (
	"errors"
	"testing"

	"github.com/vibelinechat/vibeline/internal/core/domain"
)

func newSession(id domain.SessionID, caller, callee domain.UserID) *domain.CallSession {
	return domain.NewCallSession(id, caller, callee, "conv-1", false)
}

func TestSessionStore_InsertIndexesBothParticipants(t *testing.T) {
	s := NewSessionStore()

	if err := s.Insert(newSession("s1", "u1", "u2")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !s.IsBusy("u1") || !s.IsBusy("u2") {
		t.Fatalf("expected both participants busy")
	}
	if s.IsBusy("u3") {
		t.Fatalf("u3 should not be busy")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", s.Len())
	}
}

func TestSessionStore_InsertRejectsDuplicateID(t *testing.T) {
	s := NewSessionStore()
	if err := s.Insert(newSession("s1", "u1", "u2")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	err := s.Insert(newSession("s1", "u3", "u4"))
	if !errors.Is(err, domain.ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestSessionStore_InsertRejectsBusyParticipant(t *testing.T) {
	s := NewSessionStore()
	if err := s.Insert(newSession("s1", "u1", "u2")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if err := s.Insert(newSession("s2", "u2", "u3")); !errors.Is(err, domain.ErrUserBusy) {
		t.Fatalf("expected ErrUserBusy for busy caller, got %v", err)
	}
	if err := s.Insert(newSession("s3", "u3", "u1")); !errors.Is(err, domain.ErrUserBusy) {
		t.Fatalf("expected ErrUserBusy for busy callee, got %v", err)
	}
	// The failed inserts must not leave u3 indexed.
	if s.IsBusy("u3") {
		t.Fatalf("u3 must not be busy after failed inserts")
	}
}

func TestSessionStore_RemoveClearsIndex(t *testing.T) {
	s := NewSessionStore()
	if err := s.Insert(newSession("s1", "u1", "u2")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	s.Remove("s1")

	if s.IsBusy("u1") || s.IsBusy("u2") {
		t.Fatalf("participants still busy after remove")
	}
	if _, ok := s.Get("s1"); ok {
		t.Fatalf("session still present after remove")
	}
	// Removing again is a no-op.
	s.Remove("s1")
}

func TestSessionStore_RemoveKeepsNewerIndexEntries(t *testing.T) {
	s := NewSessionStore()
	if err := s.Insert(newSession("s1", "u1", "u2")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	s.Remove("s1")
	if err := s.Insert(newSession("s2", "u1", "u3")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// A stale remove of s1 must not unindex u1 from s2.
	s.Remove("s1")
	if !s.IsBusy("u1") {
		t.Fatalf("u1 lost busy entry for newer session")
	}
}

func TestSessionStore_FindByUser(t *testing.T) {
	s := NewSessionStore()
	if err := s.Insert(newSession("s1", "u1", "u2")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	for _, u := range []domain.UserID{"u1", "u2"} {
		got, ok := s.FindByUser(u)
		if !ok || got.ID != "s1" {
			t.Fatalf("FindByUser(%s) = %v, %v", u, got, ok)
		}
	}
	if _, ok := s.FindByUser("u3"); ok {
		t.Fatalf("FindByUser should miss for uninvolved user")
	}
}
