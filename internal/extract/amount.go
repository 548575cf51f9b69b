package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// minPlausibleAmount filters out OCR noise and service-charge lines; real
// utility payments are always above this.
const minPlausibleAmount = 50

var (
	// reSettledAmount matches the Zemen Bank "Settled Amount" line, the most
	// reliable VAT-free figure when present.
	reSettledAmount = regexp.MustCompile(`(?is)settled\s+amount[:\s]*ETB\s*([0-9,]+(?:\.[0-9]{2})?)`)

	// reWithoutVAT match amounts explicitly labeled as excluding VAT.
	reWithoutVAT = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:subtotal|sub-total|sub total|before vat|excluding vat|excl\.? vat)[:\s]*(?:ETB|birr|ብር)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)(?:ETB|birr|ብር)?\s*([0-9,]+(?:\.[0-9]{2})?)\s*(?:before vat|excluding vat|excl\.? vat)`),
	}

	// reDebitedAmount matches the CBE "ETB 500.00 debited" phrasing, which
	// carries the base amount rather than the total with charges.
	reDebitedAmount = regexp.MustCompile(`(?i)ETB\s*([0-9,]+(?:\.[0-9]{2})?)\s+debited`)

	// reStandardAmounts are generic label/currency patterns used to collect
	// candidates when no explicit VAT-free figure is present.
	reStandardAmounts = []*regexp.Regexp{
		regexp.MustCompile(`(?i)debited.*?ETB\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)amount.*?(?:ETB|birr)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)(?:ETB|birr|ብር)\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)([0-9,]+(?:\.[0-9]{2})?)\s*(?:ETB|birr|ብር)`),
	}

	// reStandaloneAmounts are the last-resort patterns for receipts whose
	// labels were garbled by OCR but whose value survived ("1000.00 Birr").
	reStandaloneAmounts = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:^|\s)([0-9,]+\.00)\s*Birr`),
		regexp.MustCompile(`(?im)(?:^|\s)([0-9,]+\.[0-9]{2})\s*(?:Birr|ETB)`),
		regexp.MustCompile(`(?im)(?:^|[\s:])([0-9,]+\.[0-9]{2})\b`),
	}
)

// Amount extracts the payment amount from receipt text, preferring figures
// without VAT: an explicitly VAT-free label wins, then a debited base amount,
// then the smallest candidate not adjacent to total/VAT/charge wording. The
// returned string is the bare decimal without thousand separators; empty
// means not found.
func Amount(text string) string {
	normalized := NormalizeAmountLines(text)

	for _, searchText := range []string{normalized, text} {
		if m := reSettledAmount.FindStringSubmatch(searchText); m != nil {
			if v, ok := parseAmount(m[1]); ok && v > minPlausibleAmount {
				return strings.ReplaceAll(m[1], ",", "")
			}
		}

		for _, re := range reWithoutVAT {
			if m := re.FindStringSubmatch(searchText); m != nil {
				if v, ok := parseAmount(m[1]); ok && v > minPlausibleAmount {
					return strings.ReplaceAll(m[1], ",", "")
				}
			}
		}

		if loc := reDebitedAmount.FindStringSubmatchIndex(searchText); loc != nil {
			raw := searchText[loc[2]:loc[3]]
			if v, ok := parseAmount(raw); ok && v > minPlausibleAmount {
				start := loc[0]
				preceding := searchText[max(0, start-50):start]
				if !strings.Contains(strings.ToLower(preceding), "total") {
					return strings.ReplaceAll(raw, ",", "")
				}
			}
		}

		var candidates []float64
		for _, re := range reStandardAmounts {
			for _, loc := range re.FindAllStringSubmatchIndex(searchText, -1) {
				raw := searchText[loc[2]:loc[3]]
				v, ok := parseAmount(raw)
				if !ok || v <= minPlausibleAmount {
					continue
				}
				start := loc[0]
				ctx := strings.ToLower(searchText[max(0, start-30):min(len(searchText), start+100)])
				if strings.Contains(ctx, "total") ||
					strings.Contains(ctx, "with commission") ||
					strings.Contains(ctx, "service charge") ||
					strings.Contains(ctx, "vat") {
					continue
				}
				candidates = append(candidates, v)
			}
		}
		if len(candidates) > 0 {
			// The smallest surviving candidate is the VAT-free one.
			smallest := candidates[0]
			for _, v := range candidates[1:] {
				if v < smallest {
					smallest = v
				}
			}
			return strconv.FormatFloat(smallest, 'f', -1, 64)
		}
	}

	for _, re := range reStandaloneAmounts {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if v, ok := parseAmount(m[1]); ok && v > minPlausibleAmount {
				return strings.ReplaceAll(m[1], ",", "")
			}
		}
	}
	return ""
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
