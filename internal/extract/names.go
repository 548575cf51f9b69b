package extract

import (
	"regexp"
	"strings"
)

var (
	// rePayerNames match the payer (the account the money left), labeled or
	// as a leading uppercase run.
	rePayerNames = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:debited from|from|paid by|payer)[:\s]+([A-Z][A-Za-z\s]+?)(?:\n|for|with)`),
		regexp.MustCompile(`(?i)(?:payer|account holder)[:\s]+([A-Z][A-Za-z\s]+?)(?:\n|for|on)`),
		regexp.MustCompile(`([A-Z][A-Z][A-Z\s]{2,}?)(?:\n|for)`),
	}

	// reReceiverLabelLine detects the receiver/beneficiary name label. The
	// "Source" guard is applied per line since the label also appears inside
	// "Source Account Name".
	reReceiverLabelLine = regexp.MustCompile(`(?i)\b(Receiver Name|Beneficiary Name|Beneficiary)\b`)
	reSourceWord        = regexp.MustCompile(`(?i)Source`)
	reFieldKeyword      = regexp.MustCompile(`(?i)Transaction|Reference|Type|Bank|Note|Account|Amount|Date|Time|Source|ETB|FTB`)
	reUppercasePair     = regexp.MustCompile(`\b[A-Z]{2,}\s+[A-Z]{2,}`)
	reCurrencySuffix    = regexp.MustCompile(`(?i)\s+(ETB|FTB|BIRR).*$`)

	// reJointNames match joint-account holder pairs ("A B AND OR C D").
	reJointNames = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([A-Z][A-Z]+\s+[A-Z][A-Z]+\s+AND\s+OR\s+[A-Z][A-Z]+\s+[A-Z][A-Z]+)`),
		regexp.MustCompile(`(?i)([A-Z][A-Z]+\s+[A-Z][A-Z]+\s+AND\s*/\s*OR\s+[A-Z][A-Z]+\s+[A-Z][A-Z]+)`),
		regexp.MustCompile(`(?i)([A-Z][A-Z]+\s+[A-Z][A-Z]+\s+ANDOR\s+[A-Z][A-Z]+\s+[A-Z][A-Z]+)`),
	}

	reReceiverContext   = regexp.MustCompile(`(?i)receiver|beneficiary|payee|paid to|credited to`)
	reSourceAcctContext = regexp.MustCompile(`(?i)source\s+account\s+name`)
	reNameRun           = regexp.MustCompile(`\b([A-Z]{2,}\s+[A-Z]{2,}(?:\s+[A-Z]{2,}){0,4})\b`)
	reNameRunShort      = regexp.MustCompile(`\b([A-Z]{2,}\s+[A-Z]{2,}(?:\s+[A-Z]{2,}){0,2})\b`)
)

// beneficiaryLabelPhrases are field labels that the uppercase-run patterns
// would otherwise pick up as names.
var beneficiaryLabelPhrases = []string{
	"BANK OF", "COMMERCIAL BANK", "TRANSACTION TYPE", "ACCOUNT NUMBER",
	"REFERENCE NUMBER", "TRANSACTION DATE", "TRANSACTION ID", "SOURCE ACCOUNT",
	"RECEIVER ACCOUNT", "ACCOUNT NAME", "RECEIVER NAME", "BENEFICIARY NAME",
	"OTHER BANK", "BANK TRANSFER", "THE CHOICE", "SCAN THE", "CHOICE FOR",
}

var commonNameWords = map[string]struct{}{
	"THE": {}, "FOR": {}, "AND": {}, "OR": {}, "OF": {}, "TO": {}, "FROM": {},
}

// PayerName extracts the payer (debited account holder) from receipt text.
// Empty means not found.
func PayerName(text string) string {
	for _, re := range rePayerNames {
		if m := re.FindStringSubmatch(text); m != nil {
			name := strings.TrimSpace(reWhitespace.ReplaceAllString(m[1], " "))
			if len(name) > 3 && len(name) < 50 {
				return name
			}
		}
	}
	return ""
}

// Beneficiary extracts the payment receiver from receipt text. Table-based
// layouts (labels in one column, values below) are handled by locating the
// "Receiver Name"/"Beneficiary" label line and scanning the following lines
// for uppercase name runs, skipping account numbers and field labels; joint
// accounts ("AND OR") are preferred among candidates. Flat layouts fall back
// to joint-name patterns, then to names in receiver context, then to any
// plausible uppercase run. Empty means not found.
func Beneficiary(text string) string {
	text = CleanOCR(text)

	if name := beneficiaryFromTableLayout(text); name != "" {
		return name
	}

	for _, re := range reJointNames {
		if m := re.FindStringSubmatch(text); m != nil {
			name := strings.TrimSpace(reWhitespace.ReplaceAllString(m[1], " "))
			if len(name) >= 10 && len(name) <= 80 {
				return name
			}
		}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		ctx := strings.Join(lines[max(0, i-2):i+1], "\n")
		if reSourceAcctContext.MatchString(ctx) {
			continue
		}
		if !reReceiverContext.MatchString(ctx) {
			continue
		}
		if m := reNameRun.FindStringSubmatch(line); m != nil {
			name := m[1]
			if isBeneficiaryLabel(name) {
				continue
			}
			if len(name) >= 5 && len(name) <= 80 && len(strings.Fields(name)) >= 2 {
				return name
			}
		}
	}

	for _, m := range reNameRunShort.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if isBeneficiaryLabel(name) {
			continue
		}
		if allCommonWords(name) {
			continue
		}
		if len(name) >= 5 && len(name) <= 60 && len(strings.Fields(name)) >= 2 {
			return name
		}
	}

	return ""
}

func beneficiaryFromTableLayout(text string) string {
	lines := strings.Split(text, "\n")

	labelIdx := -1
	for i, line := range lines {
		if reReceiverLabelLine.MatchString(line) && !reSourceWord.MatchString(line) {
			labelIdx = i
			break
		}
	}
	if labelIdx < 0 {
		return ""
	}

	var candidates []string
	preferLast := false

	end := min(labelIdx+12, len(lines))
	for i := labelIdx + 1; i < end; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		// A leading digit means account numbers; names that follow belong to
		// the receiver side, so restart candidate collection there.
		if line[0] >= '0' && line[0] <= '9' {
			if len(candidates) > 0 {
				preferLast = true
			}
			candidates = candidates[:0]
			continue
		}
		if reFieldKeyword.MatchString(line) {
			continue
		}
		if !reUppercasePair.MatchString(line) {
			continue
		}

		name := line
		name = reAndSlashOr.ReplaceAllString(name, "AND OR")
		name = reAndOrGlued.ReplaceAllString(name, "AND OR")
		name = strings.TrimSpace(reWhitespace.ReplaceAllString(name, " "))
		name = reCurrencySuffix.ReplaceAllString(name, "")

		if len(strings.Fields(name)) >= 2 || strings.Contains(strings.ToUpper(name), "AND OR") {
			candidates = append(candidates, name)
		}
	}

	for _, cand := range candidates {
		if strings.Contains(strings.ToUpper(cand), "AND OR") {
			return cand
		}
	}
	if len(candidates) > 0 {
		if preferLast {
			return candidates[len(candidates)-1]
		}
		return candidates[0]
	}
	return ""
}

func isBeneficiaryLabel(name string) bool {
	upper := strings.ToUpper(name)
	for _, phrase := range beneficiaryLabelPhrases {
		if strings.Contains(upper, phrase) {
			return true
		}
	}
	return false
}

func allCommonWords(name string) bool {
	for _, w := range strings.Fields(name) {
		if _, ok := commonNameWords[w]; !ok {
			return false
		}
	}
	return true
}
