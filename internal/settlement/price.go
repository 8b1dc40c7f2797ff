package settlement

import (
	"regexp"

	"github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/money"
)

// Price labels look like "Price: 100 USD". The amount may carry decimals;
// the currency is an upper-case symbol.
var priceRe = regexp.MustCompile(`^\s*Price:\s*([0-9]+(?:\.[0-9]+)?)\s+([A-Z]{2,6})\s*$`)

// ParsePriceLabel finds the task's price label and returns its amount and
// currency. A missing or unparseable price is a precondition failure: the
// run aborts before any side effect.
func ParsePriceLabel(labels []string) (money.Dec, string, error) {
	for _, label := range labels {
		m := priceRe.FindStringSubmatch(label)
		if m == nil {
			continue
		}

		amount, err := money.Parse(m[1])
		if err != nil {
			continue
		}
		return amount, m[2], nil
	}

	return money.Zero(), "", errors.NewPreconditionError(
		"task has no price label; nothing can be settled",
		"expected a label of the form \"Price: <amount> <CURRENCY>\"",
	)
}
