// Package validate implements the ordered validation gate chain applied to
// an extracted payment fact before commit. Every gate is a pure predicate
// over the fact plus state the caller fetched beforehand; the chain performs
// no I/O and short-circuits on the first failing gate.
//
// Gate order is load-bearing: duplicate transaction id first, beneficiary
// match second, house registry third, required fields last.
package validate

import (
	"fmt"
	"strings"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
	"github.com/sphinxlike/go-receipts-backend/internal/extract"
)

// Gate identifies one validation predicate in the chain.
type Gate string

const (
	GateDuplicate   Gate = "duplicate_transaction"
	GateBeneficiary Gate = "beneficiary_mismatch"
	GateRegistry    Gate = "house_registry"
	GateRequired    Gate = "missing_fields"
)

// Outcome is the result of running the chain: either ok, or the first
// failing gate with an actionable detail. UnknownHouse is advisory output of
// the registry gate — unknown houses are accepted and flagged for registry
// addition, never rejected.
type Outcome struct {
	OK           bool
	FailedGate   Gate
	Detail       string
	UnknownHouse bool
}

// Input is the prefetched state the gates evaluate against. Callers query
// the store for candidate duplicate rows and load group configuration before
// invoking the chain so that the gates stay free of I/O.
type Input struct {
	// PriorRows are committed rows whose transaction id cell may contain the
	// fact's id (the caller prefilters with a substring query; membership in
	// the comma-separated list is decided here).
	PriorRows []domain.PaymentRow

	// Authorized is the group's list of valid beneficiary account names.
	Authorized []string

	// KnownHouses is the group's house registry snapshot (number → owner).
	KnownHouses map[string]string

	// AmountOptional permits zero/absent amounts (group configuration;
	// default is required).
	AmountOptional bool
}

func pass() Outcome { return Outcome{OK: true} }

func fail(gate Gate, detail string) Outcome {
	return Outcome{FailedGate: gate, Detail: detail}
}

// Chain runs all gates in order and reports the first failure. The registry
// gate cannot fail but contributes the UnknownHouse flag to a passing
// outcome.
func Chain(fact extract.Fact, in Input) Outcome {
	if out := Duplicate(fact, in.PriorRows); !out.OK {
		return out
	}
	if out := BeneficiaryMatch(fact, in.Authorized); !out.OK {
		return out
	}
	registry := Registry(fact, in.KnownHouses)
	if out := RequiredFields(fact, in.AmountOptional); !out.OK {
		return out
	}
	return registry
}

// Duplicate rejects a fact whose transaction id was already committed in any
// payment-category sheet of the group. Stored cells may hold comma-separated
// id lists; each element counts. A fact without a transaction id passes —
// split and partial payments legitimately arrive without one.
func Duplicate(fact extract.Fact, prior []domain.PaymentRow) Outcome {
	id := strings.TrimSpace(fact.TransactionID)
	if id == "" {
		return pass()
	}
	for _, row := range prior {
		if row.HasTransactionID(id) {
			return fail(GateDuplicate, fmt.Sprintf(
				"transaction %s already recorded in %s (house %s, %s)",
				id, row.Category, row.HouseNumber, row.Month))
		}
	}
	return pass()
}

// BeneficiaryMatch accepts a fact whose extracted beneficiary shares at
// least one name token with any authorized account name. The token-level
// overlap is intentionally permissive: OCR regularly truncates or garbles
// one of the two names on a joint account, and a single surviving surname is
// considered sufficient evidence. An absent beneficiary also passes — many
// receipt layouts defeat receiver extraction entirely and absence must not
// block legitimate payments.
func BeneficiaryMatch(fact extract.Fact, authorized []string) Outcome {
	if strings.TrimSpace(fact.Beneficiary) == "" {
		return pass()
	}
	if len(authorized) == 0 {
		return pass()
	}

	got := extract.NameTokens(fact.Beneficiary)
	for _, name := range authorized {
		for tok := range extract.NameTokens(name) {
			if _, ok := got[tok]; ok {
				return pass()
			}
		}
	}
	return fail(GateBeneficiary, fmt.Sprintf(
		"beneficiary %q does not match any authorized account name",
		extract.NormalizeName(fact.Beneficiary)))
}

// Registry never rejects: a house number missing from the registry is
// accepted and flagged so an admin can add it later.
func Registry(fact extract.Fact, known map[string]string) Outcome {
	out := pass()
	if fact.HouseNumber != "" {
		if _, ok := known[fact.HouseNumber]; !ok {
			out.UnknownHouse = true
		}
	}
	return out
}

// RequiredFields enforces the minimum committable fact: house number,
// payment reason and month must be present; the amount too, unless the
// group allows recording amount-less rows.
func RequiredFields(fact extract.Fact, amountOptional bool) Outcome {
	var missing []string
	if strings.TrimSpace(fact.HouseNumber) == "" {
		missing = append(missing, "house number")
	}
	if !fact.Reason.Valid() {
		missing = append(missing, "payment reason")
	}
	if strings.TrimSpace(fact.Month) == "" {
		missing = append(missing, "month")
	}
	if !amountOptional && strings.TrimSpace(fact.Amount) == "" {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return fail(GateRequired, "missing required fields: "+strings.Join(missing, ", "))
	}
	return pass()
}
