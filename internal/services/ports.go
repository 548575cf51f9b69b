// Package services – collaborator contracts
//
// The submission pipeline talks to the outside world (OCR, the chat
// platform's file storage, and the chat itself) only through the small
// interfaces in this file, so the coordinator stays testable with handwritten
// fakes and the transport adapters remain swappable.
package services

import (
	"context"
	"time"
)

// Recognizer produces a text transcript from a receipt image. An empty
// transcript with a nil error means recognition failed softly; the pipeline
// continues with the user-typed text alone.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, filename string) (string, error)
}

// FileFetcher downloads an attachment by its platform file id, returning the
// raw bytes and a filename hint for the recognizer.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) (data []byte, filename string, err error)
}

// Notifier posts outcome messages back into the group chat. Reply returns
// the posted message id; when ttl > 0 the implementation removes the message
// after that long so verdicts do not pile up in the chat history.
type Notifier interface {
	Reply(ctx context.Context, chatID, replyTo int64, text string, ttl time.Duration) (int64, error)

	// React attaches an emoji reaction to a message. Best effort; failures
	// are logged, not propagated.
	React(ctx context.Context, chatID, messageID int64, emoji string) error

	// Exists reports whether a message is still present in the chat. Used to
	// abort a flush whose triggering messages were deleted during the
	// buffering window.
	Exists(ctx context.Context, chatID, messageID int64) (bool, error)
}
