package domain

import (
	"reflect"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	if (PaymentRow{}).TableName() != "payment_rows" {
		t.Fatalf("PaymentRow.TableName() = %q; want %q", (PaymentRow{}).TableName(), "payment_rows")
	}
	if (House{}).TableName() != "houses" {
		t.Fatalf("House.TableName() = %q; want %q", (House{}).TableName(), "houses")
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q; want %q", (Idempotency{}).TableName(), "idempotency")
	}
}

func TestReason(t *testing.T) {
	for _, r := range Reasons {
		if !r.Valid() {
			t.Fatalf("Reason(%q) should be valid", r)
		}
		if r.AmharicLabel() == "" {
			t.Fatalf("Reason(%q) has no display label", r)
		}
	}
	if Reason("rent").Valid() {
		t.Fatalf("unknown category should not validate")
	}
	if ReasonWater.AmharicLabel() != "ውሀ" {
		t.Fatalf("water label = %q", ReasonWater.AmharicLabel())
	}
}

func TestTransactionIDs(t *testing.T) {
	cases := []struct {
		cell string
		want []string
	}{
		{"", nil},
		{"FT25123ABC", []string{"FT25123ABC"}},
		{"FT25123ABC, 9H2K4M7Q1Z", []string{"FT25123ABC", "9H2K4M7Q1Z"}},
		{" FT25123ABC ,, ", []string{"FT25123ABC"}},
	}
	for _, tc := range cases {
		got := PaymentRow{TransactionID: tc.cell}.TransactionIDs()
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("TransactionIDs(%q) = %#v; want %#v", tc.cell, got, tc.want)
		}
	}
}

func TestHasTransactionID(t *testing.T) {
	row := PaymentRow{TransactionID: "FT25123ABC, 9H2K4M7Q1Z"}

	if !row.HasTransactionID("FT25123ABC") || !row.HasTransactionID("9H2K4M7Q1Z") {
		t.Fatalf("list elements should match")
	}
	// case-insensitive
	if !row.HasTransactionID("ft25123abc") {
		t.Fatalf("matching must ignore case")
	}
	// substrings are not matches
	if row.HasTransactionID("FT25123") {
		t.Fatalf("substring of a list element must not match")
	}
	if row.HasTransactionID("") || row.HasTransactionID("   ") {
		t.Fatalf("blank id must not match")
	}
	if (PaymentRow{}).HasTransactionID("FT25123ABC") {
		t.Fatalf("empty cell must not match")
	}
}

func TestMigrations_And_Indexes(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&PaymentRow{}, &House{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&PaymentRow{}, &House{}, &Idempotency{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Indexes from tags exist
	if !m.HasIndex(&PaymentRow{}, "idx_group_house") {
		t.Fatalf("expected index idx_group_house on payment_rows")
	}
	if !m.HasIndex(&PaymentRow{}, "idx_group_txid") {
		t.Fatalf("expected index idx_group_txid on payment_rows")
	}
	if !m.HasIndex(&House{}, "ux_group_house_no") {
		t.Fatalf("expected unique index ux_group_house_no on houses")
	}

	now := time.Now().UTC()
	row := &PaymentRow{
		ID:          "11111111-1111-1111-1111-111111111111",
		GroupID:     -1001234,
		Category:    ReasonWater,
		HouseNumber: "407",
		Month:       "Hidar",
		Amount:      500,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("insert payment row: %v", err)
	}

	// Category check constraint rejects unknown sheets.
	bad := &PaymentRow{
		ID:          "22222222-2222-2222-2222-222222222222",
		GroupID:     -1001234,
		Category:    Reason("rent"),
		HouseNumber: "407",
		Month:       "Hidar",
	}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected check-constraint violation for unknown category")
	}

	// (group_id, number) must be unique in the registry.
	if err := db.Create(&House{GroupID: -1001234, Number: "407", OwnerName: "SEYOUM ASSEFA"}).Error; err != nil {
		t.Fatalf("insert house: %v", err)
	}
	if err := db.Create(&House{GroupID: -1001234, Number: "407", OwnerName: "SOMEONE ELSE"}).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (group_id, number)")
	}
	// Same number in another group is fine.
	if err := db.Create(&House{GroupID: -1005678, Number: "407"}).Error; err != nil {
		t.Fatalf("insert house in other group: %v", err)
	}
}
