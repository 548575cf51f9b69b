// Payment HTTP handlers.
//
// This file exposes the mini-app REST endpoints:
//   - POST /auth                               (verify WebApp init data)
//   - GET  /dashboard/{groupID}                (ledger aggregates, ETag support)
//   - GET  /houses/{groupID}                   (house registry)
//   - GET  /houses/{groupID}/{number}          (house lookup + payment history)
//   - GET  /user/{groupID}                     (current member's payments)
//   - GET  /months                             (Ethiopian month list)
//   - GET  /payment-types                      (category list)
//   - POST /payments/{groupID}                 (direct submission)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
	"github.com/sphinxlike/go-receipts-backend/internal/repo"
	"github.com/sphinxlike/go-receipts-backend/internal/services"
	"github.com/sphinxlike/go-receipts-backend/internal/utils"
	"github.com/sphinxlike/go-receipts-backend/internal/validate"
)

//
// Service contracts (context-aware)
//

// Ingestor accepts inbound chat fragment events from the transport bridge.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type Ingestor interface {
	HandleInbound(ctx context.Context, in services.Inbound) error
}

// PaymentAPI defines the mini-app operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PaymentAPI interface {
	Dashboard(ctx context.Context, groupID int64) (*services.Dashboard, error)
	HouseRegistry(ctx context.Context, groupID int64) ([]domain.House, error)
	HousePayments(ctx context.Context, groupID int64, house string, limit int) ([]domain.PaymentRow, error)
	UserPayments(ctx context.Context, groupID, userID int64, limit int) ([]domain.PaymentRow, error)
	LookupHouse(ctx context.Context, groupID int64, number string) (*domain.House, error)
	Months() []string
	PaymentTypes() []map[string]string
	Submit(ctx context.Context, groupID, userID int64, sub services.DirectSubmission) (*domain.PaymentRow, *validate.Outcome, error)
}

// InitDataVerifier authenticates Telegram WebApp visitors.
type InitDataVerifier interface {
	Verify(initData string) (*services.AuthUser, error)
}

//
// Handler wiring
//

// HeaderInitData carries the raw WebApp init data on authenticated requests.
const HeaderInitData = "X-Telegram-Init-Data"

// Handlers groups the HTTP endpoints for ingest, auth, and mini-app queries.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	ingest   Ingestor
	payments PaymentAPI
	auth     InitDataVerifier
}

// New constructs and returns a Handlers instance bound to the given services.
func New(ingest Ingestor, payments PaymentAPI, auth InitDataVerifier) *Handlers {
	return &Handlers{ingest: ingest, payments: payments, auth: auth}
}

// authUser verifies the init data header and returns the visitor, aborting
// the request with 401 on failure.
func (h *Handlers) authUser(c *gin.Context) (*services.AuthUser, bool) {
	user, err := h.auth.Verify(c.GetHeader(HeaderInitData))
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeInvalidInitData, "init data verification failed")
		return nil, false
	}
	return user, true
}

// groupID parses the :groupID path parameter.
func groupID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("groupID"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "groupID must be a chat id")
		return 0, false
	}
	return id, true
}

// clampLimit bounds the limit query param.
func clampLimit(c *gin.Context) int {
	const (
		defaultLimit = 50
		maxLimit     = 200
	)
	limit := utils.AtoiDefault(c.Query("limit"), defaultLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

//
// DTOs
//

// AuthResponse wraps the verified mini-app visitor.
type AuthResponse struct {
	User services.AuthUser `json:"user"`
}

// HouseDetailResponse is a registry entry with its payment history.
type HouseDetailResponse struct {
	House    domain.House        `json:"house"`
	Payments []domain.PaymentRow `json:"payments"`
}

// SubmitPaymentRequest is the JSON payload for a direct mini-app submission.
type SubmitPaymentRequest struct {
	HouseNumber   string  `json:"house_number" binding:"required"`
	Month         string  `json:"month" binding:"required"`
	Amount        float64 `json:"amount"`
	Category      string  `json:"category" binding:"required"`
	TransactionID string  `json:"transaction_id"`
	PayerName     string  `json:"payer_name"`
}

// RejectionResponse reports a failed validation gate to the mini-app.
type RejectionResponse struct {
	Code   string `json:"code"`
	Gate   string `json:"gate"`
	Detail string `json:"detail"`
}

//
// Handlers
//

// Authenticate verifies WebApp init data and echoes the embedded user.
func (h *Handlers) Authenticate(c *gin.Context) {
	var req struct {
		InitData string `json:"init_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "init_data required")
		return
	}
	user, err := h.auth.Verify(req.InitData)
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeInvalidInitData, "init data verification failed")
		return
	}
	ok(c, http.StatusOK, AuthResponse{User: *user})
}

// Dashboard returns ledger aggregates for a group. Supports weak ETag via
// If-None-Match and may return 304.
func (h *Handlers) Dashboard(c *gin.Context) {
	gid, okID := groupID(c)
	if !okID {
		return
	}
	if _, okAuth := h.authUser(c); !okAuth {
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.payments.(*services.PaymentService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.GroupStats(ctx, db, gid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"dashboard:%d:%d:%d"`, gid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	dash, err := h.payments.Dashboard(ctx, gid)
	if err != nil {
		if errors.Is(err, services.ErrGroupNotRegistered) {
			fail(c, http.StatusNotFound, ErrCodeGroupUnknown, "group not registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, dash)
}

// ListHouses returns the house registry of a group.
func (h *Handlers) ListHouses(c *gin.Context) {
	gid, okID := groupID(c)
	if !okID {
		return
	}
	if _, okAuth := h.authUser(c); !okAuth {
		return
	}
	houses, err := h.payments.HouseRegistry(c.Request.Context(), gid)
	if err != nil {
		if errors.Is(err, services.ErrGroupNotRegistered) {
			fail(c, http.StatusNotFound, ErrCodeGroupUnknown, "group not registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"houses": houses})
}

// HouseDetail returns one registry entry with its payment history.
func (h *Handlers) HouseDetail(c *gin.Context) {
	gid, okID := groupID(c)
	if !okID {
		return
	}
	if _, okAuth := h.authUser(c); !okAuth {
		return
	}
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "house number required")
		return
	}
	ctx := c.Request.Context()

	house, err := h.payments.LookupHouse(ctx, gid, number)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRowNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "house not registered")
		case errors.Is(err, services.ErrGroupNotRegistered):
			fail(c, http.StatusNotFound, ErrCodeGroupUnknown, "group not registered")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	payments, err := h.payments.HousePayments(ctx, gid, number, clampLimit(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, HouseDetailResponse{House: *house, Payments: payments})
}

// UserPayments returns the authenticated member's committed rows in a group.
func (h *Handlers) UserPayments(c *gin.Context) {
	gid, okID := groupID(c)
	if !okID {
		return
	}
	user, okAuth := h.authUser(c)
	if !okAuth {
		return
	}
	rows, err := h.payments.UserPayments(c.Request.Context(), gid, user.ID, clampLimit(c))
	if err != nil {
		if errors.Is(err, services.ErrGroupNotRegistered) {
			fail(c, http.StatusNotFound, ErrCodeGroupUnknown, "group not registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"payments": rows})
}

// Months lists the Ethiopian month names in calendar order.
func (h *Handlers) Months(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"months": h.payments.Months()})
}

// PaymentTypes lists the known payment categories with display labels.
func (h *Handlers) PaymentTypes(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"payment_types": h.payments.PaymentTypes()})
}

// SubmitPayment commits a direct mini-app payment through the same gate
// chain as the chat pipeline. Rejections return 422 with the failed gate.
// When the client sends an Idempotency-Key, a repeated request within the
// retention window replays the previously committed row instead of running
// the gates and committing again.
func (h *Handlers) SubmitPayment(c *gin.Context) {
	gid, okID := groupID(c)
	if !okID {
		return
	}
	user, okAuth := h.authUser(c)
	if !okAuth {
		return
	}
	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	currentUser := strconv.FormatInt(user.ID, 10)
	groupKey := strconv.FormatInt(gid, 10)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := idempotencyKeyFrom(c)
	if idemKey != "" {
		if svc, okSvc := h.payments.(*services.PaymentService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, groupKey, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetPaymentRow(svc.DB.WithContext(ctx), gid, rec.RowID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, prev)
					return
				}
			}
		}
	}

	row, outcome, err := h.payments.Submit(ctx, gid, user.ID, services.DirectSubmission{
		HouseNumber:   strings.TrimSpace(req.HouseNumber),
		Month:         strings.TrimSpace(req.Month),
		Amount:        req.Amount,
		Category:      strings.TrimSpace(req.Category),
		TransactionID: strings.TrimSpace(req.TransactionID),
		PayerName:     strings.TrimSpace(req.PayerName),
	})
	switch {
	case errors.Is(err, services.ErrGroupNotRegistered):
		fail(c, http.StatusNotFound, ErrCodeGroupUnknown, "group not registered")
	case errors.Is(err, services.ErrSubmissionRejected):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, RejectionResponse{
			Code:   ErrCodeSubmissionRejected,
			Gate:   string(outcome.FailedGate),
			Detail: outcome.Detail,
		})
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		// Idempotency (store path) – best effort.
		if idemKey != "" {
			if svc, okSvc := h.payments.(*services.PaymentService); okSvc && svc.DB != nil {
				ttl := 24 * time.Hour
				_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, groupKey, idemKey, row.ID, http.StatusCreated, ttl)
			}
		}
		ok(c, http.StatusCreated, row)
	}
}

// idempotencyKeyFrom reads the Idempotency-Key header. The router's
// validator middleware has already rejected malformed keys by the time a
// handler runs, so the raw header value is safe to use as a lookup key.
func idempotencyKeyFrom(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}
