// Package services – user-facing notification texts
//
// Verdict messages are Amharic-first with a short English detail line, the
// register the association's members expect in the group chat.
package services

import (
	"fmt"
	"strings"

	"github.com/sphinxlike/go-receipts-backend/internal/extract"
	"github.com/sphinxlike/go-receipts-backend/internal/validate"
)

// Reactions placed on the triggering message per outcome.
const (
	reactAccepted = "👍"
	reactRejected = "👎"
	reactFlagged  = "⚠️"
)

// successMessage renders the committed-payment confirmation.
func successMessage(f extract.Fact, edited bool) string {
	var b strings.Builder
	if edited {
		b.WriteString("✅ ክፍያዎ ተስተካክሏል!\n")
	} else {
		b.WriteString("✅ ክፍያዎ ተመዝግቧል!\n")
	}
	if f.HouseNumber != "" {
		fmt.Fprintf(&b, "ቤት ቁጥር: %s\n", f.HouseNumber)
	}
	if f.Month != "" {
		fmt.Fprintf(&b, "ወር: %s\n", f.Month)
	}
	if f.Amount != "" {
		fmt.Fprintf(&b, "መጠን: %s ብር\n", f.Amount)
	}
	fmt.Fprintf(&b, "የክፍያ አይነት: %s\n", f.Reason.AmharicLabel())
	if f.TransactionID != "" {
		fmt.Fprintf(&b, "መለያ: %s\n", f.TransactionID)
	}
	b.WriteString("እናመሰግናለን!")
	return b.String()
}

// rejectMessage renders the verdict for a failed validation gate.
func rejectMessage(o validate.Outcome) string {
	switch o.FailedGate {
	case validate.GateDuplicate:
		return "❌ ይህ ደረሰኝ ከዚህ በፊት ተመዝግቧል።\n" +
			"Already recorded: " + o.Detail
	case validate.GateBeneficiary:
		return "❌ ክፍያው ለማህበሩ አካውንት አልተፈጸመም።\n" +
			"Receipt beneficiary does not match the association account: " + o.Detail
	case validate.GateRequired:
		return "❌ ከደረሰኙ ሁሉም መረጃ አልተገኘም። እባክዎ ያስተካክሉ።\n" +
			"Missing: " + o.Detail
	default:
		return "❌ ደረሰኙ ተቀባይነት አላገኘም።\n" + o.Detail
	}
}

// flaggedHouseNote is appended to a success message when the house number was
// absent from the registry and got auto-inserted for admin review.
func flaggedHouseNote(house string) string {
	return fmt.Sprintf("\n⚠️ ቤት ቁጥር %s በመዝገቡ የለም፤ ለአስተዳዳሪ ተመላክቷል።", house)
}

// editHintMessage tells the member how to open the correction window.
func editHintMessage() string {
	return "✏️ ለማስተካከል /edit ብለው ይጻፉ።"
}

// editPromptMessage echoes the last committed facts when /edit opens the
// correction window, so the member sees what they are amending.
func editPromptMessage(f extract.Fact, window string) string {
	var b strings.Builder
	b.WriteString("📝 የተመዘገበው መረጃ:\n")
	fmt.Fprintf(&b, "🏠 ቤት: %s\n", orDash(f.HouseNumber))
	fmt.Fprintf(&b, "💰 መጠን: %s ብር\n", orDash(f.Amount))
	fmt.Fprintf(&b, "📆 ወር: %s\n", orDash(f.Month))
	fmt.Fprintf(&b, "🔖 መለያ: %s\n", orDash(f.TransactionID))
	fmt.Fprintf(&b, "📊 አይነት: %s\n\n", f.Reason.AmharicLabel())
	fmt.Fprintf(&b, "የተስተካከለውን መረጃ በ%s ውስጥ ይላኩ።", window)
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// noEditTargetMessage is sent when /edit arrives before any commit.
func noEditTargetMessage() string {
	return "❌ የተመዘገበ ክፍያ አልተገኘም።\nመጀመሪያ ክፍያ ያስገቡ፣ ከዛ ማስተካከል ይችላሉ።"
}

// editExpiredMessage is sent when an edit session closes without changes.
func editExpiredMessage() string {
	return "ℹ️ የማስተካከያ ጊዜው አልፏል። ምዝገባው እንደነበረ ጸንቷል።"
}

// emptySubmissionMessage is sent when a flush carried nothing extractable.
func emptySubmissionMessage() string {
	return "❌ ደረሰኝ ወይም ጽሑፍ አልተገኘም። እባክዎ ደረሰኙን ፎቶ አድርገው ይላኩ።"
}
