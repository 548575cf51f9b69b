// Package services – persistence contracts
//
// PaymentStore and HouseDirectory are the slices of the repository layer the
// coordinator needs. GormStore is the production implementation; tests use
// handwritten in-memory fakes.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
	"github.com/sphinxlike/go-receipts-backend/internal/repo"
)

// PaymentStore persists and queries committed payment rows.
type PaymentStore interface {
	Append(ctx context.Context, row domain.PaymentRow) (*domain.PaymentRow, error)
	Get(ctx context.Context, groupID int64, id string) (*domain.PaymentRow, error)
	Update(ctx context.Context, row *domain.PaymentRow) error
	FindByTransactionID(ctx context.Context, groupID int64, txid string) ([]domain.PaymentRow, error)
	FindRow(ctx context.Context, groupID int64, category domain.Reason, house, month string) (*domain.PaymentRow, error)
	LastByUser(ctx context.Context, groupID, userID int64) (*domain.PaymentRow, error)
}

// HouseDirectory reads and amends the per-group house registry.
type HouseDirectory interface {
	Snapshot(ctx context.Context, groupID int64) (map[string]string, error)
	Flag(ctx context.Context, groupID int64, number string) error
}

// GormStore implements PaymentStore and HouseDirectory on the GORM
// repository layer.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) Append(ctx context.Context, row domain.PaymentRow) (*domain.PaymentRow, error) {
	return repo.CreatePaymentRow(s.DB.WithContext(ctx), row)
}

func (s *GormStore) Get(ctx context.Context, groupID int64, id string) (*domain.PaymentRow, error) {
	return repo.GetPaymentRow(s.DB.WithContext(ctx), groupID, id)
}

func (s *GormStore) Update(ctx context.Context, row *domain.PaymentRow) error {
	return repo.UpdatePaymentRow(s.DB.WithContext(ctx), row)
}

func (s *GormStore) FindByTransactionID(ctx context.Context, groupID int64, txid string) ([]domain.PaymentRow, error) {
	return repo.FindByTransactionID(s.DB.WithContext(ctx), groupID, txid)
}

func (s *GormStore) FindRow(ctx context.Context, groupID int64, category domain.Reason, house, month string) (*domain.PaymentRow, error) {
	return repo.FindRow(s.DB.WithContext(ctx), groupID, category, house, month)
}

func (s *GormStore) LastByUser(ctx context.Context, groupID, userID int64) (*domain.PaymentRow, error) {
	return repo.LastRowByUser(s.DB.WithContext(ctx), groupID, userID)
}

func (s *GormStore) Snapshot(ctx context.Context, groupID int64) (map[string]string, error) {
	return repo.HouseSnapshot(s.DB.WithContext(ctx), groupID)
}

func (s *GormStore) Flag(ctx context.Context, groupID int64, number string) error {
	return repo.FlagUnknownHouse(s.DB.WithContext(ctx), groupID, number)
}
