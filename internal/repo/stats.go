// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the dashboard endpoints of the mini-app. Each function is context-aware
// and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
)

// CategoryTotal is one aggregate bucket of the dashboard: committed amount
// and row count per payment category.
type CategoryTotal struct {
	Category domain.Reason `json:"category"`
	Total    float64       `json:"total"`
	Count    int64         `json:"count"`
}

// MonthTotal is one aggregate bucket per Ethiopian month.
type MonthTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

// GroupStats returns aggregate metadata for a group's ledger: the total
// number of committed rows and the maximum UpdatedAt timestamp among them.
// When the group has no rows, the returned count is 0 and maxUpdatedAt is
// nil.
func GroupStats(ctx context.Context, db *gorm.DB, groupID int64) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.PaymentRow{}).Where("group_id = ?", groupID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// TotalsByCategory aggregates committed amounts per payment category for a
// group. Categories without rows are omitted.
func TotalsByCategory(ctx context.Context, db *gorm.DB, groupID int64) ([]CategoryTotal, error) {
	var out []CategoryTotal
	err := db.WithContext(ctx).
		Model(&domain.PaymentRow{}).
		Select("category, SUM(amount) AS total, COUNT(*) AS count").
		Where("group_id = ?", groupID).
		Group("category").
		Order("category ASC").
		Scan(&out).Error
	return out, err
}

// TotalsByMonth aggregates committed amounts per Ethiopian month for one
// category of a group. An empty category aggregates across all categories.
func TotalsByMonth(ctx context.Context, db *gorm.DB, groupID int64, category domain.Reason) ([]MonthTotal, error) {
	q := db.WithContext(ctx).
		Model(&domain.PaymentRow{}).
		Select("month, SUM(amount) AS total, COUNT(*) AS count").
		Where("group_id = ?", groupID)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var out []MonthTotal
	err := q.Group("month").Order("month ASC").Scan(&out).Error
	return out, err
}

// FlaggedHouseCount counts registry entries auto-inserted from receipts that
// still await an admin to complete them.
func FlaggedHouseCount(ctx context.Context, db *gorm.DB, groupID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.House{}).
		Where("group_id = ? AND flagged = ?", groupID, true).
		Count(&n).Error
	return n, err
}
