package gate

import (
	"context"
	"fmt"
	"strings"
)

// All combines gates conjunctively: every child must pass. Evaluation is
// sequential and short-circuits on the first denial, whose reason becomes
// the combined reason. All is itself a Gate and nests freely.
func All(gates ...Gate) Gate {
	return newGate(func(ctx context.Context, p Principal) (Decision, error) {
		if len(gates) == 0 {
			return Decision{}, fmt.Errorf("%w: all combinator needs at least one gate", ErrEmptyGateConfig)
		}

		for _, g := range gates {
			d, err := g.Check(ctx, p)
			if err != nil {
				return Decision{}, err
			}
			if !d.Allowed {
				return d, nil
			}
		}
		return Decision{Allowed: true}, nil
	})
}

// Any combines gates disjunctively: one passing child suffices.
// Evaluation is sequential and short-circuits on the first success; when
// every child denies, the reasons are aggregated and the first fallback
// encountered is kept.
func Any(gates ...Gate) Gate {
	return newGate(func(ctx context.Context, p Principal) (Decision, error) {
		if len(gates) == 0 {
			return Decision{}, fmt.Errorf("%w: any combinator needs at least one gate", ErrEmptyGateConfig)
		}

		var reasons []string
		var fallback string
		for _, g := range gates {
			d, err := g.Check(ctx, p)
			if err != nil {
				return Decision{}, err
			}
			if d.Allowed {
				return Decision{Allowed: true}, nil
			}
			if d.Reason != "" {
				reasons = append(reasons, d.Reason)
			}
			if fallback == "" {
				fallback = d.Fallback
			}
		}

		return Decision{
			Reason:   strings.Join(reasons, "; "),
			Fallback: fallback,
		}, nil
	})
}
