package extract

import (
	"regexp"
	"strings"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
	"github.com/sphinxlike/go-receipts-backend/internal/etcal"
)

// Fact is the structured result of one extraction pass over a merged
// submission. Immutable after creation; string fields use "" for "not
// found" — no field is ever guessed from absence.
type Fact struct {
	HouseNumber   string
	Amount        string // decimal string without separators
	Month         string // Ethiopian month name
	Reason        domain.Reason
	TransactionID string
	Beneficiary   string
	PayerName     string
	RawDate       string // Gregorian date as printed
	EthiopianDate string // converted display date, e.g. "Hidar 2017"
}

// Input carries everything one extraction pass may consult. Houses is a
// read-only snapshot of the group's registry (number → owner name) used for
// owner-name mapping and reverse lookup; EditMode plus Original enable the
// edit-window disambiguation rules.
type Input struct {
	MergedText string // user text then OCR text, receipt order
	UserText   string // user-typed fragments only, space-joined
	Caption    string // photo captions, space-joined
	EditMode   bool
	Original   *Fact             // last committed fact, edit mode only
	Houses     map[string]string // house number → owner name
}

var (
	reExplicitAmount = regexp.MustCompile(`(?i)(?:amount|birr|ብር)[:\s]+([0-9.]+)`)
	reAmountWithUnit = regexp.MustCompile(`(?i)([0-9.]+)\s*(?:birr|ብር)`)
	reExplicitHouse  = regexp.MustCompile(`(?i)(?:house|ቤት|home)[:\s]+([0-9]{3,4})`)
	reExplicitMonth  = regexp.MustCompile(`(?i)(?:month|ወር)[:\s]+(\p{L}+)`)
	reBareNumber     = regexp.MustCompile(`^[0-9.]+$`)
)

// Extract turns one merged submission into a Fact. It is deterministic and
// total: extraction never fails, missing fields stay empty.
//
// Priorities, per field:
//   - house: explicit "house:" label (edit mode) > user text > caption >
//     merged text; in edit mode a bare number is an amount correction, so
//     the original house is kept instead.
//   - amount: explicit "amount:" label or bare number (edit mode) > receipt
//     heuristics.
//   - month: explicit "month:" label > user text > caption > merged text.
//   - transaction id: user-typed id > OCR id.
func Extract(in Input) Fact {
	combined := CleanOCR(in.MergedText)
	if in.Caption != "" {
		combined = CleanOCR(in.Caption) + "\n" + combined
	}
	userText := strings.TrimSpace(in.UserText)

	var explicitAmount, explicitHouse, explicitMonth string
	if in.EditMode && userText != "" {
		lower := strings.ToLower(userText)
		if m := reExplicitAmount.FindStringSubmatch(lower); m != nil {
			explicitAmount = m[1]
		} else if m := reAmountWithUnit.FindStringSubmatch(lower); m != nil {
			explicitAmount = m[1]
		}
		if m := reExplicitHouse.FindStringSubmatch(lower); m != nil {
			explicitHouse = m[1]
		}
		if m := reExplicitMonth.FindStringSubmatch(lower); m != nil {
			explicitMonth = m[1]
		}
	}

	bareNumber := in.EditMode && userText != "" && reBareNumber.MatchString(userText)
	// A bare number or an explicit field correction in edit mode means the
	// user is amending one field, not resubmitting the house number.
	keepOriginalHouse := bareNumber || explicitAmount != "" || explicitMonth != ""

	var fact Fact

	switch {
	case explicitHouse != "":
		fact.HouseNumber = explicitHouse
	case in.EditMode && keepOriginalHouse:
		if in.Original != nil {
			fact.HouseNumber = in.Original.HouseNumber
		}
	case userText != "":
		fact.HouseNumber = HouseNumber(userText)
	}
	if fact.HouseNumber == "" && !(in.EditMode && keepOriginalHouse) {
		if in.Caption != "" {
			fact.HouseNumber = HouseNumber(in.Caption)
		}
		if fact.HouseNumber == "" {
			fact.HouseNumber = HouseNumber(combined)
		}
	}

	switch {
	case explicitAmount != "":
		fact.Amount = explicitAmount
	case bareNumber:
		fact.Amount = userText
	default:
		fact.Amount = Amount(combined)
	}

	fact.RawDate = Date(combined)
	if t, ok := ParseDate(fact.RawDate); ok {
		fact.EthiopianDate = etcal.Display(t)
	}

	if id := UserTransactionID(userText); id != "" {
		fact.TransactionID = id
	} else {
		fact.TransactionID = TransactionID(combined)
	}

	fact.PayerName = PayerName(combined)

	// Registry lookups: a known house overrides the extracted payer with the
	// registered owner; a recognized owner name recovers a missing house.
	if fact.HouseNumber == "" && len(in.Houses) > 0 {
		fact.HouseNumber, fact.PayerName = reverseHouseLookup(fact.PayerName, combined, in.Houses)
	}
	if owner, ok := in.Houses[fact.HouseNumber]; ok && owner != "" {
		fact.PayerName = owner
	}

	fact.Reason = Reason(combined)

	switch {
	case explicitMonth != "":
		fact.Month = etcal.MonthFromText(explicitMonth)
	case in.EditMode && userText != "" && !bareNumber:
		fact.Month = etcal.MonthFromText(userText)
	case !in.EditMode && userText != "":
		fact.Month = etcal.MonthFromText(userText)
	}
	if fact.Month == "" && in.Caption != "" {
		fact.Month = etcal.MonthFromText(in.Caption)
	}
	if fact.Month == "" {
		fact.Month = etcal.MonthFromText(combined)
	}

	fact.Beneficiary = Beneficiary(combined)

	return fact
}

// reverseHouseLookup recovers the house number from the registry when only a
// name was extracted: first by the extracted payer name, then by scanning
// the whole text for any registered owner.
func reverseHouseLookup(payer, combined string, houses map[string]string) (house, name string) {
	if payer != "" {
		upper := strings.ToUpper(payer)
		for num, owner := range houses {
			if owner != "" && strings.Contains(strings.ToUpper(owner), upper) {
				return num, payer
			}
		}
	}
	combinedUpper := strings.ToUpper(combined)
	for num, owner := range houses {
		if owner != "" && strings.Contains(combinedUpper, strings.ToUpper(owner)) {
			return num, owner
		}
	}
	return "", payer
}
