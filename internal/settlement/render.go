package settlement

import (
	"fmt"
	"sort"
	"strings"
)

// RenderComment produces the posted settlement comment: an itemized
// markdown table followed by the embedded receipt block. Rewards are
// already in descending-amount order.
func RenderComment(s *Settlement, receiptBlock string) string {
	var b strings.Builder

	b.WriteString("### Task settlement\n\n")

	if len(s.Rewards) > 0 {
		b.WriteString("| Recipient | Amount | Sources | Claim |\n")
		b.WriteString("|-----------|--------|---------|-------|\n")
		for _, r := range s.Rewards {
			sources := strings.Join(r.SourceTitles, ", ")
			claim := "—"
			if r.ClaimURL != "" {
				claim = fmt.Sprintf("[claim](%s)", r.ClaimURL)
			}
			fmt.Fprintf(&b, "| @%s | %s %s | %s | %s |\n",
				r.Participant.Handle, r.Amount.StringFixed(2), r.Currency, sources, claim)
		}
	} else {
		b.WriteString("No payable contributions.\n")
	}

	if len(s.Fallback) > 0 {
		b.WriteString("\nUnclaimed rewards (no payout address on file or payout skipped):\n\n")

		handles := make([]string, 0, len(s.Fallback))
		for handle := range s.Fallback {
			handles = append(handles, handle)
		}
		sort.Strings(handles)

		for _, handle := range handles {
			fmt.Fprintf(&b, "- @%s: %s %s\n", handle, s.Fallback[handle].StringFixed(2), s.Currency)
		}
	}

	b.WriteString("\n")
	b.WriteString(receiptBlock)
	b.WriteString("\n")

	return b.String()
}
