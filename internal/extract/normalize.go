// Package extract implements the extraction engine: a set of pure, total
// field extractors that turn noisy multilingual OCR text and user-typed
// fragments into a structured payment fact. Extractors never fail; a field
// that cannot be found is the empty string.
//
// Each field has its own extractor over the same text so that every heuristic
// stays independently testable. The layering of patterns (bank-specific
// labels first, generic fallbacks last) follows the receipt formats observed
// in production: CBE, Telebirr and Zemen Bank.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reAndSlashOr  = regexp.MustCompile(`(?i)AND\s*/\s*OR`)
	reAndOrGlued  = regexp.MustCompile(`(?i)ANDOR`)
	rePunct       = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	reWhitespace  = regexp.MustCompile(`\s+`)
	reAmountValue = regexp.MustCompile(`^[0-9,]+\.[0-9]{2}`)
)

// amountLabels are labels that frequently appear on their own line in
// table-based receipt layouts, with the value on the following line.
var amountLabels = []string{
	"settled amount", "settled", "amount paid", "paid", "debited", "credited",
	"subtotal", "sub-total", "sub total", "total amount",
}

// CleanOCR canonicalizes raw OCR output before any extractor runs: Unicode
// NFC normalization (OCR engines emit decomposed Ethiopic sequences) and
// en/em dashes folded to ASCII hyphens.
func CleanOCR(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "–", "-")
	text = strings.ReplaceAll(text, "—", "-")
	return text
}

// NormalizeAmountLines joins amount labels with values that OCR placed on the
// next line (Zemen Bank table layouts render "Settled Amount" and
// "ETB 1,000.00" as separate lines).
func NormalizeAmountLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		hasLabel := false
		for _, label := range amountLabels {
			if strings.Contains(lower, label) {
				hasLabel = true
				break
			}
		}

		if hasLabel && i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next != "" && (strings.HasPrefix(strings.ToUpper(next), "ETB") || reAmountValue.MatchString(next)) {
				out = append(out, line+" "+next)
				i++
				continue
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// NormalizeName canonicalizes a person name for comparison: uppercase,
// "and/or" variants folded to "AND OR", punctuation stripped, whitespace
// collapsed.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	name = strings.ToUpper(name)
	name = reAndSlashOr.ReplaceAllString(name, "AND OR")
	name = strings.ReplaceAll(name, "&", "AND")
	name = rePunct.ReplaceAllString(name, " ")
	name = reWhitespace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// nameConnectors are filler tokens dropped before token-set comparison.
var nameConnectors = map[string]struct{}{
	"AND": {}, "OR": {}, "ANDOR": {}, "THE": {}, "OF": {}, "TO": {}, "A": {}, "AN": {},
}

// NameTokens returns the normalized, connector-free token set of a name.
func NameTokens(name string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, tok := range strings.Fields(NormalizeName(name)) {
		if _, skip := nameConnectors[tok]; skip {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}
