// Package receipt embeds and recovers machine-parseable records inside
// posted comments. The settlement receipt embedded this way is the
// engine's idempotency record: its presence proves a task was already
// settled.
package receipt

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/taskforge/rewards/internal/types"
)

// Namespace prefixes every embedded block so unrelated HTML comments are
// never mistaken for receipts.
const Namespace = "taskforge-rewards"

// SettlementClass is the class name the idempotency guard looks for.
const SettlementClass = "SettlementReceipt"

// Revision identifies the code that produced a receipt. Overridden at
// build time via -ldflags.
var Revision = "dev"

// Embedded is one parsed block: its class, the caller that produced it,
// the producing revision, and the raw JSON payload.
type Embedded struct {
	ClassName string
	Caller    string
	Revision  string
	Payload   json.RawMessage
}

// The payload is marshaled compactly onto a single line; encoding/json
// escapes newlines inside strings, so the "\n-->" terminator can never
// occur inside the payload and create/parse agree exactly on the frame.
var blockRe = regexp.MustCompile(
	`<!-- ` + regexp.QuoteMeta(Namespace) + ` - (\S+) - (\S+) - (\S+)\n(.*)\n-->`)

// Embed renders a payload into a delimited block for inclusion in a
// posted comment.
func Embed(className, caller string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", className, err)
	}
	return fmt.Sprintf("<!-- %s - %s - %s - %s\n%s\n-->", Namespace, className, caller, Revision, data), nil
}

// ExtractAll parses every embedded block found in a comment body.
func ExtractAll(body string) []Embedded {
	matches := blockRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	blocks := make([]Embedded, 0, len(matches))
	for _, m := range matches {
		payload := json.RawMessage(m[4])
		if !json.Valid(payload) {
			continue
		}
		blocks = append(blocks, Embedded{
			ClassName: m[1],
			Caller:    m[2],
			Revision:  m[3],
			Payload:   payload,
		})
	}
	return blocks
}

// FindSettlement scans machine-authored comments for a prior settlement
// receipt. Human comments are never trusted as receipts.
func FindSettlement(comments []types.Comment) (*Embedded, bool) {
	for _, c := range comments {
		if !c.MachineAuthored() {
			continue
		}
		for _, block := range ExtractAll(c.Body) {
			if block.ClassName == SettlementClass {
				found := block
				return &found, true
			}
		}
	}
	return nil, false
}
