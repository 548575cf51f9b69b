// Ingest HTTP handler.
//
// POST /ingest is the boundary between the chat transport bridge and the
// submission pipeline: the bridge forwards each group message as one fragment
// event and the pipeline takes over (topic filtering, OCR, buffering). The
// endpoint replies 202 as soon as the fragment is buffered; verdicts are
// delivered back into the chat asynchronously.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sphinxlike/go-receipts-backend/internal/services"
)

// IngestRequest is one inbound fragment event from the transport bridge.
type IngestRequest struct {
	ChatID    int64  `json:"chat_id" binding:"required"`
	TopicID   int64  `json:"topic_id"`
	UserID    int64  `json:"user_id" binding:"required"`
	MessageID int64  `json:"message_id" binding:"required"`
	UserName  string `json:"user_name"`
	Text      string `json:"text"`
	Caption   string `json:"caption"`
	PhotoRef  string `json:"photo_ref"`
}

// Ingest accepts one fragment event and hands it to the pipeline.
func (h *Handlers) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" && req.PhotoRef == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "event carries neither text nor photo_ref")
		return
	}

	err := h.ingest.HandleInbound(c.Request.Context(), services.Inbound{
		ChatID:    req.ChatID,
		TopicID:   req.TopicID,
		UserID:    req.UserID,
		MessageID: req.MessageID,
		UserName:  req.UserName,
		Text:      req.Text,
		Caption:   req.Caption,
		PhotoRef:  req.PhotoRef,
	})
	switch {
	case errors.Is(err, services.ErrGroupNotRegistered):
		fail(c, http.StatusNotFound, ErrCodeGroupUnknown, "group not registered")
	case errors.Is(err, services.ErrEmptySubmission):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "event carries neither text nor photo_ref")
	case errors.Is(err, services.ErrNoEditTarget):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no recent submission to edit")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, err.Error())
	default:
		ok(c, http.StatusAccepted, gin.H{"status": "buffered"})
	}
}
