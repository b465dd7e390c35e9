package generation

import (
	"fmt"

	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/cf-ai-screenwriter-go/internal/services/ai"
)

// Provider slots
const (
	SlotPrimary   = "primary"
	SlotSecondary = "secondary"
)

// Step is one provider attempt
type Step struct {
	Slot     string
	Provider ai.Provider
}

// Strategy is the ordered list of providers to try for a request. The next
// step runs only when the previous one failed.
type Strategy struct {
	Steps []Step
	// Pinned is set when the caller named a provider. Pinned strategies never
	// fall back.
	Pinned bool
}

// Fallback reports whether the strategy has a step after the first
func (s Strategy) Fallback() bool {
	return len(s.Steps) > 1
}

// Plan selects providers for a request.
//
//	hint primary          -> [primary]
//	hint secondary        -> [secondary]
//	no hint, preferPrimary -> [primary, secondary]
//	no hint               -> [secondary]
//
// A missing slot is skipped when the caller did not pin it. Pinning an
// unconfigured slot, or having no providers at all, is an invalid configuration.
func Plan(hint models.ProviderHint, preferPrimary bool, primary, secondary ai.Provider) (Strategy, error) {
	switch hint {
	case models.HintPrimary:
		if primary == nil {
			return Strategy{}, fmt.Errorf("%w: primary provider is not configured", ErrInvalidConfiguration)
		}
		return Strategy{Steps: []Step{{SlotPrimary, primary}}, Pinned: true}, nil
	case models.HintSecondary:
		if secondary == nil {
			return Strategy{}, fmt.Errorf("%w: secondary provider is not configured", ErrInvalidConfiguration)
		}
		return Strategy{Steps: []Step{{SlotSecondary, secondary}}, Pinned: true}, nil
	}

	var steps []Step
	if preferPrimary {
		if primary != nil {
			steps = append(steps, Step{SlotPrimary, primary})
		}
		if secondary != nil {
			steps = append(steps, Step{SlotSecondary, secondary})
		}
	} else {
		switch {
		case secondary != nil:
			steps = append(steps, Step{SlotSecondary, secondary})
		case primary != nil:
			steps = append(steps, Step{SlotPrimary, primary})
		}
	}

	if len(steps) == 0 {
		return Strategy{}, fmt.Errorf("%w: no provider configured", ErrInvalidConfiguration)
	}
	return Strategy{Steps: steps}, nil
}
