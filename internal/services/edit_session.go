// Package services – edit sessions
//
// A member opens a correction window with the /edit command. Messages they
// send while the session is open are interpreted as field amendments of
// their last committed row instead of a fresh submission. The window is
// never opened implicitly; back-to-back receipts stay separate rows.
package services

import (
	"sync"
	"time"

	"github.com/sphinxlike/go-receipts-backend/internal/buffer"
	"github.com/sphinxlike/go-receipts-backend/internal/extract"
)

// editSession tracks one open correction window: the committed row it amends
// and the facts it was committed with, so bare corrections ("520", "house
// 412") can be applied against known values.
type editSession struct {
	RowID    string
	Fact     extract.Fact
	ExpireAt time.Time
}

// editSessions is a concurrency-safe map of open sessions keyed by
// (chat, user). Expired sessions are dropped lazily on access.
type editSessions struct {
	mu       sync.Mutex
	sessions map[buffer.Key]editSession
}

func newEditSessions() *editSessions {
	return &editSessions{sessions: make(map[buffer.Key]editSession)}
}

// Open starts (or restarts) a session for key.
func (e *editSessions) Open(key buffer.Key, rowID string, fact extract.Fact, ttl time.Duration) {
	e.mu.Lock()
	e.sessions[key] = editSession{
		RowID:    rowID,
		Fact:     fact,
		ExpireAt: time.Now().Add(ttl),
	}
	e.mu.Unlock()
}

// Get returns the open session for key, if any. An expired session is
// removed and reported as absent.
func (e *editSessions) Get(key buffer.Key) (editSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok {
		return editSession{}, false
	}
	if time.Now().After(s.ExpireAt) {
		delete(e.sessions, key)
		return editSession{}, false
	}
	return s, true
}

// Close removes the session for key.
func (e *editSessions) Close(key buffer.Key) {
	e.mu.Lock()
	delete(e.sessions, key)
	e.mu.Unlock()
}

// Expire removes the session for key if it still amends rowID and its window
// has elapsed. Returns true when a session was removed, so the caller can
// notify the user. A session reopened with a later deadline is left alone.
func (e *editSessions) Expire(key buffer.Key, rowID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok || s.RowID != rowID || time.Now().Before(s.ExpireAt) {
		return false
	}
	delete(e.sessions, key)
	return true
}

// lastSubmission remembers a member's most recent committed row so a later
// /edit knows what to amend and can echo it back.
type lastSubmission struct {
	RowID string
	Fact  extract.Fact
}

// lastSubmissions is a concurrency-safe map of each member's latest commit,
// keyed by (chat, user). Entries have no TTL; the ledger is the fallback
// after a restart.
type lastSubmissions struct {
	mu   sync.Mutex
	rows map[buffer.Key]lastSubmission
}

func newLastSubmissions() *lastSubmissions {
	return &lastSubmissions{rows: make(map[buffer.Key]lastSubmission)}
}

func (l *lastSubmissions) Set(key buffer.Key, rowID string, fact extract.Fact) {
	l.mu.Lock()
	l.rows[key] = lastSubmission{RowID: rowID, Fact: fact}
	l.mu.Unlock()
}

func (l *lastSubmissions) Get(key buffer.Key) (lastSubmission, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.rows[key]
	return s, ok
}
