// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the House
// registry.
package repo

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
)

// UpsertHouse inserts or refreshes one registry entry. An existing entry
// keeps its Flagged state unless the incoming record clears it (a seeded
// registry row overrides an earlier auto-flagged placeholder).
func UpsertHouse(db *gorm.DB, h domain.House) error {
	h.UpdatedAt = time.Now().UTC()
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_name", "flagged", "updated_at"}),
	}).Create(&h).Error
}

// FlagUnknownHouse records a house number that appeared on a receipt but is
// missing from the registry. Idempotent: an already-registered house is left
// alone.
func FlagUnknownHouse(db *gorm.DB, groupID int64, number string) error {
	h := domain.House{
		GroupID:   groupID,
		Number:    number,
		Flagged:   true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "number"}},
		DoNothing: true,
	}).Create(&h).Error
}

// HouseSnapshot returns the registry of a group as a number->owner map, the
// shape the extraction and validation layers consume.
func HouseSnapshot(db *gorm.DB, groupID int64) (map[string]string, error) {
	var houses []domain.House
	if err := db.Where("group_id = ?", groupID).Find(&houses).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(houses))
	for _, h := range houses {
		out[h.Number] = h.OwnerName
	}
	return out, nil
}

// ListHouses returns the full registry of a group ordered by house number.
func ListHouses(db *gorm.DB, groupID int64) ([]domain.House, error) {
	var out []domain.House
	err := db.Where("group_id = ?", groupID).Order("number ASC").Find(&out).Error
	return out, err
}

// SeedHouses loads a "number,owner" CSV into the registry of a group,
// clearing the flagged state of every seeded entry. Returns the number of
// entries applied. Lines with an empty house number are skipped.
func SeedHouses(db *gorm.DB, groupID int64, csvPath string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open houses file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse houses file: %w", err)
	}

	n := 0
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		number := strings.TrimSpace(rec[0])
		if number == "" || strings.EqualFold(number, "house") {
			continue
		}
		owner := ""
		if len(rec) > 1 {
			owner = strings.TrimSpace(rec[1])
		}
		if err := UpsertHouse(db, domain.House{
			GroupID:   groupID,
			Number:    number,
			OwnerName: owner,
			Flagged:   false,
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// GetHouse fetches one registry entry. Returns gorm.ErrRecordNotFound when
// the house is not registered.
func GetHouse(db *gorm.DB, groupID int64, number string) (*domain.House, error) {
	var h domain.House
	if err := db.Where("group_id = ? AND number = ?", groupID, number).First(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}
