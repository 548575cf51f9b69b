package extract

import (
	"regexp"
	"strings"
)

var (
	// reHouseAmharic matches a number following ቤት ቁጥር ("house number").
	reHouseAmharic = regexp.MustCompile(`ቤት\s*ቁጥር\s*[:.]?\s*(\d{3,4})`)

	// reHouseEnglish matches H.No / H-No / House prefixes.
	reHouseEnglish = regexp.MustCompile(`(?i)(?:H\.?\s*No\.?|H-No\.?|House)\s*[:.]?\s*(\d{3,4})`)

	// reHouseShort matches the bare ቁ / ቁጥር prefix.
	reHouseShort = regexp.MustCompile(`ቁጥር?\s*[:.]?\s*(\d{3,4})`)

	reURL          = regexp.MustCompile(`https?://\S+`)
	reFTReference  = regexp.MustCompile(`FT\d+\w*`)
	reDigitRun     = regexp.MustCompile(`[0-9]+`)
	reHouseKeyword = regexp.MustCompile(`(?i)ቁ|ብሎክ|ወር|H\.?No|Block`)
	reSlashPair    = regexp.MustCompile(`(\d{1,2})\s*/\s*(\d{1,2})`)
	reSpacePair    = regexp.MustCompile(`(\d{1,2})\s+(\d{1,2})`)
)

// HouseNumber extracts a 3-4 digit house number from caption or message
// text. Labeled forms win (Amharic ቤት ቁጥር, then H.No/House, then bare ቁ);
// otherwise standalone 3-4 digit runs are considered after discarding years
// (19xx/20xx) and round numbers ending in zero, which are amounts. Short
// keyword-bearing text is treated as a user caption (first number wins);
// long unlabeled text is treated as OCR output, where the house tends to sit
// near the bottom (last number wins). Split forms like "14/06" are combined
// as a last resort. Empty means not found.
func HouseNumber(text string) string {
	if text == "" {
		return ""
	}

	if m := reHouseAmharic.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := reHouseEnglish.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := reHouseShort.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	// Strip URLs and FT-prefixed bank references before scanning for bare
	// digit runs; both are digit-rich false positives.
	clean := reURL.ReplaceAllString(text, "")
	clean = reFTReference.ReplaceAllString(clean, "")

	var valid []string
	for _, num := range reDigitRun.FindAllString(clean, -1) {
		if len(num) != 3 && len(num) != 4 {
			continue
		}
		if len(num) == 4 && (strings.HasPrefix(num, "19") || strings.HasPrefix(num, "20")) {
			continue
		}
		if strings.HasSuffix(num, "0") {
			continue
		}
		valid = append(valid, num)
	}
	if len(valid) > 0 {
		isShort := len(text) < 100
		hasKeywords := reHouseKeyword.MatchString(text)
		if hasKeywords || isShort {
			return valid[0]
		}
		return valid[len(valid)-1]
	}

	if m := reSlashPair.FindStringSubmatch(text); m != nil {
		combined := m[1] + m[2]
		if len(combined) == 3 || len(combined) == 4 {
			return combined
		}
	}
	if m := reSpacePair.FindStringSubmatch(text); m != nil {
		combined := m[1] + m[2]
		if len(combined) == 3 || len(combined) == 4 {
			return combined
		}
	}
	return ""
}
