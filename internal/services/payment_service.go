// Package services – PaymentService
//
// This file implements the mini-app facing operations: dashboard aggregates,
// house and user payment history, house lookup, and direct payment
// submission. Direct submissions pass the exact same validation gate chain
// as receipts arriving through the chat pipeline.
package services

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"github.com/sphinxlike/go-receipts-backend/internal/config"
	"github.com/sphinxlike/go-receipts-backend/internal/domain"
	"github.com/sphinxlike/go-receipts-backend/internal/etcal"
	"github.com/sphinxlike/go-receipts-backend/internal/extract"
	"github.com/sphinxlike/go-receipts-backend/internal/repo"
	"github.com/sphinxlike/go-receipts-backend/internal/validate"
)

// Dashboard is the aggregate view the mini-app home screen renders.
type Dashboard struct {
	GroupID       int64                `json:"group_id"`
	RowCount      int64                `json:"row_count"`
	FlaggedHouses int64                `json:"flagged_houses"`
	ByCategory    []repo.CategoryTotal `json:"by_category"`
	ByMonth       []repo.MonthTotal    `json:"by_month"`
	Recent        []domain.PaymentRow  `json:"recent"`
}

// recentRowsOnDashboard caps the activity feed on the home screen.
const recentRowsOnDashboard = 10

// DirectSubmission is a payment entered through the mini-app form rather
// than extracted from a receipt.
type DirectSubmission struct {
	HouseNumber   string  `json:"house_number"`
	Month         string  `json:"month"`
	Amount        float64 `json:"amount"`
	Category      string  `json:"category"`
	TransactionID string  `json:"transaction_id"`
	PayerName     string  `json:"payer_name"`
}

// PaymentService serves the mini-app read and write paths.
type PaymentService struct {
	DB     *gorm.DB
	Store  PaymentStore
	Houses HouseDirectory
	Groups *config.Registry
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, store PaymentStore, houses HouseDirectory, groups *config.Registry) *PaymentService {
	return &PaymentService{DB: db, Store: store, Houses: houses, Groups: groups}
}

// Dashboard aggregates the group ledger for the mini-app home screen.
func (s *PaymentService) Dashboard(ctx context.Context, groupID int64) (*Dashboard, error) {
	if _, ok := s.Groups.ByChat(groupID); !ok {
		return nil, ErrGroupNotRegistered
	}
	count, _, err := repo.GroupStats(ctx, s.DB, groupID)
	if err != nil {
		return nil, err
	}
	byCat, err := repo.TotalsByCategory(ctx, s.DB, groupID)
	if err != nil {
		return nil, err
	}
	byMonth, err := repo.TotalsByMonth(ctx, s.DB, groupID, "")
	if err != nil {
		return nil, err
	}
	flagged, err := repo.FlaggedHouseCount(ctx, s.DB, groupID)
	if err != nil {
		return nil, err
	}
	recent, err := repo.ListRecentRows(s.DB.WithContext(ctx), groupID, recentRowsOnDashboard)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		GroupID:       groupID,
		RowCount:      count,
		FlaggedHouses: flagged,
		ByCategory:    byCat,
		ByMonth:       byMonth,
		Recent:        recent,
	}, nil
}

// HouseRegistry returns the full registry of a group.
func (s *PaymentService) HouseRegistry(ctx context.Context, groupID int64) ([]domain.House, error) {
	if _, ok := s.Groups.ByChat(groupID); !ok {
		return nil, ErrGroupNotRegistered
	}
	return repo.ListHouses(s.DB.WithContext(ctx), groupID)
}

// HousePayments returns the committed rows of one house, newest first.
func (s *PaymentService) HousePayments(ctx context.Context, groupID int64, house string, limit int) ([]domain.PaymentRow, error) {
	if _, ok := s.Groups.ByChat(groupID); !ok {
		return nil, ErrGroupNotRegistered
	}
	return repo.ListRowsByHouse(s.DB.WithContext(ctx), groupID, house, limit)
}

// UserPayments returns the rows a member submitted in a group, newest first.
func (s *PaymentService) UserPayments(ctx context.Context, groupID, userID int64, limit int) ([]domain.PaymentRow, error) {
	if _, ok := s.Groups.ByChat(groupID); !ok {
		return nil, ErrGroupNotRegistered
	}
	return repo.ListRowsByUser(s.DB.WithContext(ctx), groupID, userID, limit)
}

// LookupHouse resolves one registry entry, including its flagged state.
func (s *PaymentService) LookupHouse(ctx context.Context, groupID int64, number string) (*domain.House, error) {
	if _, ok := s.Groups.ByChat(groupID); !ok {
		return nil, ErrGroupNotRegistered
	}
	h, err := repo.GetHouse(s.DB.WithContext(ctx), groupID, number)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	return h, err
}

// Months lists the Ethiopian month names in calendar order.
func (s *PaymentService) Months() []string {
	out := make([]string, len(etcal.Months))
	copy(out, etcal.Months)
	return out
}

// PaymentTypes lists the known categories with their Amharic labels.
func (s *PaymentService) PaymentTypes() []map[string]string {
	out := make([]map[string]string, 0, len(domain.Reasons))
	for _, r := range domain.Reasons {
		out = append(out, map[string]string{
			"value": string(r),
			"label": r.AmharicLabel(),
		})
	}
	return out
}

// Submit commits a direct mini-app payment after running the same gate
// chain as the chat pipeline. Rejections return ErrSubmissionRejected
// wrapped with the gate detail.
func (s *PaymentService) Submit(ctx context.Context, groupID, userID int64, sub DirectSubmission) (*domain.PaymentRow, *validate.Outcome, error) {
	group, ok := s.Groups.ByChat(groupID)
	if !ok {
		return nil, nil, ErrGroupNotRegistered
	}

	reason := domain.Reason(sub.Category)
	if !reason.Valid() {
		reason = domain.ReasonOther
	}
	fact := extract.Fact{
		HouseNumber:   sub.HouseNumber,
		Month:         etcal.MonthFromText(sub.Month),
		Amount:        formatAmount(sub.Amount),
		Reason:        reason,
		TransactionID: sub.TransactionID,
		PayerName:     sub.PayerName,
	}

	houses, err := s.Houses.Snapshot(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	prior, err := s.Store.FindByTransactionID(ctx, groupID, fact.TransactionID)
	if err != nil {
		return nil, nil, err
	}
	outcome := validate.Chain(fact, validate.Input{
		PriorRows:      prior,
		Authorized:     group.Beneficiaries,
		KnownHouses:    houses,
		AmountOptional: group.AmountOptional,
	})
	if !outcome.OK {
		return nil, &outcome, ErrSubmissionRejected
	}

	row, err := s.Store.Append(ctx, rowFromFact(groupID, userID, fact))
	if err != nil {
		return nil, nil, err
	}
	if outcome.UnknownHouse && fact.HouseNumber != "" {
		if err := s.Houses.Flag(ctx, groupID, fact.HouseNumber); err != nil {
			return row, &outcome, nil
		}
	}
	return row, &outcome, nil
}

// formatAmount renders an ETB amount the way extraction produces it: plain
// decimal, no trailing zeros, empty for zero.
func formatAmount(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
