// Package buffer implements the per-user aggregation window of the
// submission pipeline. Inbound fragments (user-typed messages and OCR'd
// receipt images, possibly seconds apart and out of order) are collected per
// (chat, user) key; every new fragment restarts the debounce timer, and when
// the window elapses without a new fragment the whole batch is handed to the
// flush callback in one piece.
//
// Timer races are resolved with a per-key generation counter: a timer only
// flushes the generation it was armed for, so a stale timer firing after the
// entry was already flushed (or replaced by a new cycle) is a no-op.
package buffer

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Key identifies one buffering window: a user within a group chat.
type Key struct {
	ChatID int64
	UserID int64
}

// Fragment is one inbound unit. Fragments are owned by the entry they were
// appended to and are discarded after the flush callback returns.
type Fragment struct {
	Text       string
	Caption    string
	IsOCR      bool
	MessageID  int64
	ReceivedAt time.Time
}

// FlushFunc receives the full fragment batch of one debounce cycle, in
// receipt order. It runs on the timer goroutine; the entry is already gone
// from the buffer when it is invoked, so fragments arriving concurrently
// start a fresh cycle instead of interleaving with this one.
type FlushFunc func(key Key, frags []Fragment)

type entry struct {
	frags []Fragment
	gen   uint64
	timer *time.Timer
}

// Buffer aggregates fragments per key and debounces their processing.
// Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries map[Key]*entry
	gen     uint64 // global generation source, monotonically increasing

	flush FlushFunc
	log   zerolog.Logger
}

// New constructs a Buffer delivering batches to flush.
func New(flush FlushFunc, log zerolog.Logger) *Buffer {
	return &Buffer{
		entries: make(map[Key]*entry),
		flush:   flush,
		log:     log,
	}
}

// Accept appends a fragment for key and (re)starts its debounce timer with
// the given window. The window is supplied per call because an active edit
// session widens it; the latest fragment's window wins, which matches the
// debounce contract (the timer measures silence after the last fragment).
func (b *Buffer) Accept(key Key, frag Fragment, window time.Duration) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok {
		e = &entry{}
		b.entries[key] = e
	}
	e.frags = append(e.frags, frag)

	if e.timer != nil {
		e.timer.Stop()
	}
	b.gen++
	gen := b.gen
	e.gen = gen
	e.timer = time.AfterFunc(window, func() { b.fire(key, gen) })
	depth := len(e.frags)
	b.mu.Unlock()

	b.log.Debug().
		Int64("chat_id", key.ChatID).
		Int64("user_id", key.UserID).
		Int("depth", depth).
		Dur("window", window).
		Msg("fragment buffered")
}

// fire is the timer callback. It flushes the entry only when its generation
// still matches the one the timer was armed for.
func (b *Buffer) fire(key Key, gen uint64) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok || e.gen != gen {
		b.mu.Unlock()
		return
	}
	frags := e.frags
	delete(b.entries, key)
	b.mu.Unlock()

	if len(frags) == 0 {
		return
	}
	b.flush(key, frags)
}

// Drop discards any pending entry for key without flushing. Used when the
// submission is aborted (e.g. the triggering messages were deleted).
func (b *Buffer) Drop(key Key) {
	b.mu.Lock()
	if e, ok := b.entries[key]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(b.entries, key)
	}
	b.mu.Unlock()
}

// Pending reports the number of buffered fragments for key; zero when no
// entry exists.
func (b *Buffer) Pending(key Key) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok {
		return len(e.frags)
	}
	return 0
}

// Merged is the receipt-order merge of one fragment batch: user-typed text
// space-joined, OCR text newline-joined, captions space-joined, and the
// combined body (user text first, then OCR text) handed to extraction.
type Merged struct {
	UserText string
	OCRText  string
	Captions string
	Combined string
}

// Merge concatenates a fragment batch preserving receipt order within each
// segment kind.
func Merge(frags []Fragment) Merged {
	var user, ocr, captions []string
	for _, f := range frags {
		if f.Text != "" {
			if f.IsOCR {
				ocr = append(ocr, f.Text)
			} else {
				user = append(user, f.Text)
			}
		}
		if f.Caption != "" {
			captions = append(captions, f.Caption)
		}
	}
	m := Merged{
		UserText: strings.Join(user, " "),
		OCRText:  strings.Join(ocr, "\n"),
		Captions: strings.Join(captions, " "),
	}
	m.Combined = m.UserText + "\n" + m.OCRText
	return m
}
