package extract

import (
	"strings"

	"github.com/sphinxlike/go-receipts-backend/internal/domain"
)

// reasonKeywords maps every payment category to the caption/message keywords
// that select it, Amharic spellings first. Order of the outer slice matters:
// the first category with a matching keyword wins.
var reasonKeywords = []struct {
	reason   domain.Reason
	keywords []string
}{
	{domain.ReasonWater, []string{
		"ውሃ", "water", "wuha", "weha", "የውሀ", "ውሀ", "wiha", "የውሃ", "የውሀ ክፍያ", "የውሃ ክፍያ", "wha", "ውኃ",
		"የዉሃ", "ዉሃ", "የዉሀ", "ዉሀ", "የዉሃ ክፍያ", "ዉኃ", "የዉኃ",
	}},
	{domain.ReasonElectricity, []string{
		"ኤሌክትሪክ", "የመብራት", "ሙቀት", "electricity", "electric", "power", "መብራት",
	}},
	{domain.ReasonDevelopment, []string{
		"የልማት", "ልማት", "አካባቢ", "ጥገና", "ጤና", "development", "environmental", "environment",
		"maintenance", "repair", "health", "medical", "hospital", "doctor",
	}},
	{domain.ReasonPenalty, []string{
		"ቅጣት", "የቅጣት", "penalty", "fine", "ketat", "ktat", "kitat",
	}},
	{domain.ReasonOther, []string{
		"ያልታወቀ", "other", "unknown",
	}},
}

// Reason maps free text to a payment category via the fixed keyword table.
// Text without any category keyword falls back to ReasonOther, the
// catch-all sheet.
func Reason(text string) domain.Reason {
	lower := strings.ToLower(text)
	for _, entry := range reasonKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) || strings.Contains(text, kw) {
				return entry.reason
			}
		}
	}
	return domain.ReasonOther
}
