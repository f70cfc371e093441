// Package policy resolves a classified Event against the active Config into
// the ordered (destination, rendered-message) pairs the Notifier Set
// dispatches. The engine is pure and deterministic given its Config and
// input, per spec.md §4.3.
package policy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tierwatch/tierwatch/internal/classify"
	"github.com/tierwatch/tierwatch/internal/config"
)

// Notification is one resolved (destination, rendered-message) pair ready
// for dispatch.
type Notification struct {
	Destination config.DestinationId
	Message     string
}

// Engine resolves Events against an immutable Config.
type Engine struct {
	cfg config.Config
}

// New builds an Engine bound to cfg. cfg is never mutated after Load.
func New(cfg config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Resolve implements the algorithm in spec.md §4.3: lookup program →
// instruction → asset key, collect every matched threshold's destinations,
// deduplicate (destination, description) pairs, and render one Notification
// per surviving pair.
func (e *Engine) Resolve(event classify.Event) []Notification {
	program, ok := e.cfg.Programs[event.ProgramAlias]
	if !ok {
		return nil
	}

	rule, ok := program.Instructions[event.InstructionName]
	if !ok {
		return nil
	}

	thresholds, ok := rule.Thresholds[event.AssetKey]
	if !ok {
		return nil
	}

	type pair struct {
		destination config.DestinationId
		description string
	}
	seen := make(map[pair]struct{})

	var notifications []Notification
	for _, threshold := range thresholds {
		if event.AmountHuman.LessThan(threshold.Value) {
			continue
		}

		destinations := threshold.Notification.Destinations.ToSlice()
		slices.Sort(destinations)

		for _, destination := range destinations {
			key := pair{destination: destination, description: threshold.Notification.Description}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			notifications = append(notifications, Notification{
				Destination: destination,
				Message:     e.render(destination, threshold.Notification.Description, event),
			})
		}
	}

	return notifications
}

func (e *Engine) render(destination config.DestinationId, description string, event classify.Event) string {
	template := e.cfg.Template(destination)

	replacer := strings.NewReplacer(
		"{{description}}", description,
		"{{amount}}", formatAmount(event.AmountHuman),
		"{{currency_unit}}", event.CurrencyUnit,
		"{{tx_hash}}", event.TransactionSignature,
		"{{explorer_url}}", explorerURL(e.cfg.ExplorerURL, event.TransactionSignature),
	)

	return replacer.Replace(template)
}

func explorerURL(base, txHash string) string {
	if !strings.Contains(base, "%s") {
		return base
	}
	return fmt.Sprintf(base, txHash)
}

// formatAmount renders a decimal amount with up to 9 fractional digits,
// trailing zeros trimmed, and never in scientific notation.
func formatAmount(amount decimal.Decimal) string {
	s := amount.Truncate(9).String()
	if !strings.Contains(s, ".") {
		return s
	}

	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
