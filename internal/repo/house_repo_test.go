package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
)

func TestUpsertHouse(t *testing.T) {
	db := openTestDB(t)

	if err := UpsertHouse(db, domain.House{GroupID: -100, Number: "407", OwnerName: "SEYOUM ASSEFA"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := UpsertHouse(db, domain.House{GroupID: -100, Number: "407", OwnerName: "SENAIT DAGNIE"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := GetHouse(db, -100, "407")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerName != "SENAIT DAGNIE" {
		t.Fatalf("owner = %q, want refreshed value", got.OwnerName)
	}

	houses, err := ListHouses(db, -100)
	if err != nil {
		t.Fatal(err)
	}
	if len(houses) != 1 {
		t.Fatalf("houses = %d, want 1 (upsert must not duplicate)", len(houses))
	}
}

func TestFlagUnknownHouse(t *testing.T) {
	db := openTestDB(t)

	if err := UpsertHouse(db, domain.House{GroupID: -100, Number: "407", OwnerName: "SEYOUM ASSEFA"}); err != nil {
		t.Fatal(err)
	}

	// Flagging a registered house is a no-op.
	if err := FlagUnknownHouse(db, -100, "407"); err != nil {
		t.Fatalf("flag existing: %v", err)
	}
	got, err := GetHouse(db, -100, "407")
	if err != nil {
		t.Fatal(err)
	}
	if got.Flagged || got.OwnerName != "SEYOUM ASSEFA" {
		t.Fatalf("registered house altered: %+v", got)
	}

	// An unknown house gets a flagged placeholder.
	if err := FlagUnknownHouse(db, -100, "999"); err != nil {
		t.Fatalf("flag unknown: %v", err)
	}
	got, err = GetHouse(db, -100, "999")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Flagged {
		t.Fatalf("placeholder not flagged: %+v", got)
	}

	// Seeding the registry later clears the flag.
	if err := UpsertHouse(db, domain.House{GroupID: -100, Number: "999", OwnerName: "ALMAZ TESFAYE"}); err != nil {
		t.Fatal(err)
	}
	got, err = GetHouse(db, -100, "999")
	if err != nil {
		t.Fatal(err)
	}
	if got.Flagged || got.OwnerName != "ALMAZ TESFAYE" {
		t.Fatalf("seed must override the placeholder: %+v", got)
	}
}

func TestHouseSnapshot(t *testing.T) {
	db := openTestDB(t)

	for _, h := range []domain.House{
		{GroupID: -100, Number: "407", OwnerName: "SEYOUM ASSEFA"},
		{GroupID: -100, Number: "731", OwnerName: "ALMAZ TESFAYE"},
		{GroupID: -200, Number: "512", OwnerName: "OTHER GROUP"},
	} {
		if err := UpsertHouse(db, h); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := HouseSnapshot(db, -100)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 2 || snap["407"] != "SEYOUM ASSEFA" || snap["731"] != "ALMAZ TESFAYE" {
		t.Fatalf("snapshot = %v", snap)
	}
	if _, ok := snap["512"]; ok {
		t.Fatal("snapshot leaked another group's house")
	}
}

func TestSeedHouses(t *testing.T) {
	db := openTestDB(t)

	path := filepath.Join(t.TempDir(), "houses.csv")
	csv := "house,owner\n407,SEYOUM ASSEFA\n731,ALMAZ TESFAYE\n,skipped\n512\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}

	n, err := SeedHouses(db, -100, path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 3 {
		t.Fatalf("seeded %d, want 3", n)
	}

	snap, err := HouseSnapshot(db, -100)
	if err != nil {
		t.Fatal(err)
	}
	if snap["407"] != "SEYOUM ASSEFA" || snap["731"] != "ALMAZ TESFAYE" {
		t.Fatalf("snapshot = %v", snap)
	}
	if owner, ok := snap["512"]; !ok || owner != "" {
		t.Fatalf("ownerless line: %v %v", owner, ok)
	}

	if _, err := SeedHouses(db, -100, filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("missing file must error")
	}
}

func TestGetHouse_NotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := GetHouse(db, -100, "407"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, want record not found", err)
	}
}
