// Package domain defines the persistence models for the payment
// sheet-of-record. These types are mapped with GORM and form the core data
// layer of the receipts backend: committed payment rows partitioned by
// payment category, and the per-group house registry.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Reason is the closed set of payment categories. Each category maps to one
// logical sheet in the sheet-of-record.
type Reason string

const (
	ReasonWater       Reason = "water"
	ReasonElectricity Reason = "electricity"
	ReasonDevelopment Reason = "development"
	ReasonPenalty     Reason = "penalty"
	ReasonOther       Reason = "other"
)

// Reasons lists every payment category in display order.
var Reasons = []Reason{ReasonWater, ReasonElectricity, ReasonDevelopment, ReasonPenalty, ReasonOther}

// AmharicLabel returns the display label used in user-facing notifications.
func (r Reason) AmharicLabel() string {
	switch r {
	case ReasonWater:
		return "ውሀ"
	case ReasonElectricity:
		return "የመብራት"
	case ReasonDevelopment:
		return "የልማት"
	case ReasonPenalty:
		return "የቅጣት"
	default:
		return "ያልታወቀ"
	}
}

// Valid reports whether r is one of the known categories.
func (r Reason) Valid() bool {
	switch r {
	case ReasonWater, ReasonElectricity, ReasonDevelopment, ReasonPenalty, ReasonOther:
		return true
	}
	return false
}

// PaymentRow is one committed payment record. The transaction id column may
// hold a comma-separated list when several receipts were merged into the same
// logical cell of the original sheet; duplicate checks must treat each list
// element as a standalone id.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - GroupID: Telegram group (chat) the payment belongs to; every query is
//     scoped by it.
//   - Category: logical sheet key (water, electricity, ...).
//   - HouseNumber: 3-4 digit house identifier within the group.
//   - Month: Ethiopian month name ("Meskerem".."Pagume").
//   - Amount: payment amount in ETB.
//   - TransactionID: bank reference id, possibly a comma-separated list.
//   - PayerName / Beneficiary: names as extracted (beneficiary normalized
//     uppercase).
//   - PaymentDate: raw Gregorian date string as printed on the receipt.
//   - EthiopianDate: converted Ethiopian calendar date for display.
//   - SubmittedBy: Telegram user id of the submitter (0 for history imports).
type PaymentRow struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	GroupID       int64          `json:"group_id"       gorm:"not null;index:idx_group_house,priority:1;index:idx_group_txid,priority:1"`
	Category      Reason         `json:"category"       gorm:"type:varchar(16);not null;check:category IN ('water','electricity','development','penalty','other')"`
	HouseNumber   string         `json:"house_number"   gorm:"type:varchar(8);not null;index:idx_group_house,priority:2"`
	Month         string         `json:"month"          gorm:"type:varchar(16);not null"`
	Amount        float64        `json:"amount"`
	TransactionID string         `json:"transaction_id" gorm:"type:varchar(128);index:idx_group_txid,priority:2"`
	PayerName     string         `json:"payer_name"     gorm:"type:varchar(128)"`
	Beneficiary   string         `json:"beneficiary"    gorm:"type:varchar(128)"`
	PaymentDate   string         `json:"payment_date"   gorm:"type:varchar(32)"`
	EthiopianDate string         `json:"ethiopian_date" gorm:"type:varchar(32)"`
	SubmittedBy   int64          `json:"submitted_by"   gorm:"index"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for PaymentRow.
func (PaymentRow) TableName() string { return "payment_rows" }

// TransactionIDs splits the stored transaction id cell into its individual
// ids, trimming whitespace and dropping empties.
func (p PaymentRow) TransactionIDs() []string {
	if p.TransactionID == "" {
		return nil
	}
	parts := strings.Split(p.TransactionID, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// HasTransactionID reports whether id equals the stored transaction id or
// appears as one element of its comma-separated list.
func (p PaymentRow) HasTransactionID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	for _, t := range p.TransactionIDs() {
		if strings.EqualFold(t, id) {
			return true
		}
	}
	return false
}

// House is one entry of the per-group house registry. Rows submitted for a
// house number missing from the registry are accepted and the house is
// inserted with Flagged=true so an admin can complete the record later.
type House struct {
	ID        uint           `json:"-"          gorm:"primaryKey"`
	GroupID   int64          `json:"group_id"   gorm:"not null;uniqueIndex:ux_group_house_no,priority:1"`
	Number    string         `json:"number"     gorm:"type:varchar(8);not null;uniqueIndex:ux_group_house_no,priority:2"`
	OwnerName string         `json:"owner_name" gorm:"type:varchar(128)"`
	Flagged   bool           `json:"flagged"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for House.
func (House) TableName() string { return "houses" }
