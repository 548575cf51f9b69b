// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the PaymentRow
// model, the sheet-of-record for committed payments.
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
)

// CreatePaymentRow inserts a committed payment row and returns it with its
// generated id.
func CreatePaymentRow(db *gorm.DB, row domain.PaymentRow) (*domain.PaymentRow, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.CreatedAt = time.Now().UTC()
	row.UpdatedAt = row.CreatedAt
	if err := db.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// GetPaymentRow fetches a payment row by id within a group.
func GetPaymentRow(db *gorm.DB, groupID int64, id string) (*domain.PaymentRow, error) {
	var row domain.PaymentRow
	if err := db.Where("group_id = ? AND id = ?", groupID, id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdatePaymentRow persists field changes of an existing row in place. Only
// the extracted payment fields are written; identity and audit columns stay
// untouched.
func UpdatePaymentRow(db *gorm.DB, row *domain.PaymentRow) error {
	row.UpdatedAt = time.Now().UTC()
	return db.Model(row).
		Select("category", "house_number", "month", "amount", "transaction_id",
			"payer_name", "beneficiary", "payment_date", "ethiopian_date", "updated_at").
		Updates(row).Error
}

// FindByTransactionID returns every row of a group whose transaction id cell
// contains txid, either as the whole value or as one element of a
// comma-separated list. A LIKE prefilter narrows the scan; the comma-list
// membership test runs in Go because SQL cannot split the cell reliably.
func FindByTransactionID(db *gorm.DB, groupID int64, txid string) ([]domain.PaymentRow, error) {
	if txid == "" {
		return nil, nil
	}
	var candidates []domain.PaymentRow
	err := db.
		Where("group_id = ? AND transaction_id LIKE ?", groupID, "%"+txid+"%").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, row := range candidates {
		if row.HasTransactionID(txid) {
			out = append(out, row)
		}
	}
	return out, nil
}

// FindRow locates the row for one (category, house, month) cell of a group.
// Returns gorm.ErrRecordNotFound when the cell is empty.
func FindRow(db *gorm.DB, groupID int64, category domain.Reason, house, month string) (*domain.PaymentRow, error) {
	var row domain.PaymentRow
	err := db.
		Where("group_id = ? AND category = ? AND house_number = ? AND month = ?",
			groupID, category, house, month).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListRowsByHouse returns all committed rows for one house of a group,
// newest first.
func ListRowsByHouse(db *gorm.DB, groupID int64, house string, limit int) ([]domain.PaymentRow, error) {
	var out []domain.PaymentRow
	q := db.
		Where("group_id = ? AND house_number = ?", groupID, house).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRowsByUser returns the rows a Telegram user submitted in a group,
// newest first.
func ListRowsByUser(db *gorm.DB, groupID, userID int64, limit int) ([]domain.PaymentRow, error) {
	var out []domain.PaymentRow
	q := db.
		Where("group_id = ? AND submitted_by = ?", groupID, userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRecentRows returns the latest committed rows of a group across all
// categories.
func ListRecentRows(db *gorm.DB, groupID int64, limit int) ([]domain.PaymentRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.PaymentRow
	err := db.
		Where("group_id = ?", groupID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LastRowByUser returns the most recent row a user committed in a group, the
// target of an in-place edit. Returns gorm.ErrRecordNotFound when the user
// has no rows.
func LastRowByUser(db *gorm.DB, groupID, userID int64) (*domain.PaymentRow, error) {
	var row domain.PaymentRow
	err := db.
		Where("group_id = ? AND submitted_by = ?", groupID, userID).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
