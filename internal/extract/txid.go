package extract

import (
	"regexp"
	"strings"
)

// txidExcludedWords are receipt labels that match the generic alphanumeric
// fallback patterns but are never transaction ids.
var txidExcludedWords = []string{
	"transaction", "reference", "number", "invoice", "receipt", "details",
	"reason", "type", "time", "date", "amount", "account", "completed",
	"payment", "transfer", "charge", "commission", "sender",
}

var (
	// reZemenTxIDs match the Zemen Bank payment order / reference labels,
	// whose value may land on the following line in OCR output.
	reZemenTxIDs = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:payment\s+order\s+number|reference\s+no\.?)[:\s]*\n?\s*([A-Z0-9]{10,})`),
		regexp.MustCompile(`(?im)(?:payment\s+order\s+number|reference\s+no\.?)[:\s]+([A-Z0-9]{10,})`),
	}

	// reTelebirrInvoices match Telebirr invoice numbers such as DAE3SX92FL:
	// three leading letters then a mixed alphanumeric tail.
	reTelebirrInvoices = []*regexp.Regexp{
		regexp.MustCompile(`(?im)invoice\s+no\.?[:\s]*\n?\s*([A-Z]{3}[A-Z0-9]{7,12})`),
		regexp.MustCompile(`\b([A-Z]{3}[0-9][A-Z0-9]{2}[A-Z]{2}[A-Z0-9]{2,5})\b`),
	}

	// reLabeledTxIDs match explicit transaction-id labels, colon-qualified
	// or bare.
	reLabeledTxIDs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:transaction\s+id|tx\s+id|txid|txn|tran\s+ref)\s*:\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`(?i)(?:transaction\s+id|tx\s+id|txid|txn|tran\s+ref)\s+([A-Za-z0-9]+)`),
		regexp.MustCompile(`(?i)(?:reference\s+no\.?\s*\(vat\s+invoice\s+no\.?\)|vat\s+invoice\s+no\.?)\s*:\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`(?i)(?:vat\s+receipt\s+(?:number|no\.?))\s*:\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`(?i)(?:vat\s+invoice\s+(?:number|no\.?))\s*:\s*([A-Za-z0-9]+)`),
		regexp.MustCompile(`(?i)(?:reference\s+number|ref\s+no\.?)\s*:\s*([A-Za-z0-9]+)`),
	}

	// reHyphenatedTxID matches ids of the ABC-DEF-123 shape.
	reHyphenatedTxID = regexp.MustCompile(`([A-Za-z0-9]+-[A-Za-z0-9]+-[A-Za-z0-9]+)`)

	// reGenericTxID is the widest fallback: long alphanumeric runs that mix
	// letters and digits.
	reGenericTxID = regexp.MustCompile(`\b([A-Z]{2}[A-Za-z0-9]{8,}|[0-9]{2}[A-Z]{2,}[A-Z0-9]{6,}|[A-Z0-9]{10,})\b`)

	// rePaymentReasonTokens pulls alphanumeric runs off "payment reason"
	// lines so free-text reasons are never mistaken for ids.
	rePaymentReasonTokens = regexp.MustCompile(`(?i)([A-Z0-9]{8,})`)

	// reUserTxIDs match ids in user-typed follow-up messages, labeled or in
	// the bare 10BBETF53170884 form.
	reUserTxIDs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:txid|transaction\s*id|tx\s*id|reference|ref)[:\s]+([A-Z0-9]{8,})`),
		regexp.MustCompile(`([0-9]{2}[A-Z]{2,}[A-Z0-9]{6,})`),
	}
)

func hasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}) >= 0
}

func isExcludedTxID(candidate string, extra []string) bool {
	lower := strings.ToLower(candidate)
	for _, w := range txidExcludedWords {
		if lower == w {
			return true
		}
	}
	for _, w := range extra {
		if lower == w {
			return true
		}
	}
	return false
}

// TransactionID extracts the bank transaction / reference id from receipt
// text. Bank-specific labels (Zemen payment order, Telebirr invoice) are
// tried first, then generic labeled forms, then hyphenated and bare
// alphanumeric fallbacks. Candidates must mix letters and digits so dates,
// amounts and plain words never qualify. Empty means not found.
func TransactionID(text string) string {
	for _, re := range reZemenTxIDs {
		if m := re.FindStringSubmatch(text); m != nil {
			id := strings.TrimSpace(m[1])
			if len(id) >= 10 && !isExcludedTxID(id, nil) &&
				hasDigit(id) && hasLetter(id) &&
				!strings.Contains(strings.ToLower(id), "reason") {
				return id
			}
		}
	}

	for _, re := range reTelebirrInvoices {
		if m := re.FindStringSubmatch(text); m != nil {
			id := strings.ToUpper(strings.TrimSpace(m[1]))
			if len(id) >= 10 && len(id) <= 15 &&
				hasLetter(id[:3]) && !hasDigit(id[:3]) &&
				hasDigit(id) && !isExcludedTxID(id, nil) {
				return id
			}
		}
	}

	for _, re := range reLabeledTxIDs {
		if m := re.FindStringSubmatch(text); m != nil {
			id := strings.TrimSpace(m[1])
			if len(id) >= 5 && !isExcludedTxID(id, nil) &&
				hasDigit(id) && hasLetter(id) &&
				!strings.Contains(strings.ToLower(id), "reason") {
				return id
			}
		}
	}

	for _, m := range reHyphenatedTxID.FindAllStringSubmatch(text, -1) {
		id := m[1]
		upper := strings.ToUpper(id)
		if hasLetter(id) && len(id) >= 8 && !isExcludedTxID(id, nil) &&
			!strings.Contains(upper, "ETB") && !strings.Contains(upper, "BIRR") &&
			!strings.Contains(upper, "FTB") &&
			!strings.Contains(strings.ToLower(id), "reason") {
			return id
		}
	}

	// Collect tokens on "payment reason" lines; those are descriptions the
	// submitter typed, not references.
	var reasonTokens []string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), "payment reason") {
			for _, m := range rePaymentReasonTokens.FindAllStringSubmatch(line, -1) {
				reasonTokens = append(reasonTokens, strings.ToLower(m[1]))
			}
		}
	}

	for _, m := range reGenericTxID.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if !isExcludedTxID(id, reasonTokens) && hasDigit(id) && hasLetter(id) {
			return id
		}
	}
	return ""
}

// UserTransactionID extracts a transaction id from user-typed text. Typed
// ids take precedence over OCR ids because users correct OCR mistakes by
// retyping the reference.
func UserTransactionID(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range reUserTxIDs {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}
