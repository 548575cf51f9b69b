// Package ocr provides text recognition for receipt images via the ocr.space
// HTTP API. OCR failures are deliberately soft: the pipeline treats an empty
// transcript as "no OCR text" and continues with whatever the user typed.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sphinxlike/go-receipts-backend/internal/config"
)

// Client calls the ocr.space parse endpoint. The zero value is not usable;
// construct with New.
type Client struct {
	apiKey   string
	endpoint string
	attempts int
	http     *http.Client
	log      zerolog.Logger
}

// New builds a Client from configuration. The per-attempt timeout lives on
// the embedded http.Client; retries add up on top of it.
func New(cfg config.OCRConfig, log zerolog.Logger) *Client {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		attempts: attempts,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

// parseResponse mirrors the subset of the ocr.space payload we consume.
type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool        `json:"IsErroredOnProcessing"`
	ErrorMessage          interface{} `json:"ErrorMessage"` // string or []string depending on failure
}

// Recognize submits an image and returns the recognized text. It retries
// transient failures up to the configured attempt count and returns "" with
// a nil error when every attempt failed: OCR absence is a degraded input,
// not a pipeline error.
func (c *Client) Recognize(ctx context.Context, image []byte, filename string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		text, err := c.parseOnce(ctx, image, filename)
		if err == nil {
			return text, nil
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("ocr attempt failed")
	}
	c.log.Error().Err(lastErr).Int("attempts", c.attempts).Msg("ocr gave up, continuing without transcript")
	return "", nil
}

func (c *Client) parseOnce(ctx context.Context, image []byte, filename string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("apikey", c.apiKey); err != nil {
		return "", err
	}
	// Engine 2 handles the mixed Latin/Ethiopic receipts far better than the default.
	if err := w.WriteField("OCREngine", "2"); err != nil {
		return "", err
	}
	if err := w.WriteField("scale", "true"); err != nil {
		return "", err
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(image); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr.space status %d", resp.StatusCode)
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("ocr.space processing error: %v", parsed.ErrorMessage)
	}
	if len(parsed.ParsedResults) == 0 {
		return "", nil
	}
	return parsed.ParsedResults[0].ParsedText, nil
}
