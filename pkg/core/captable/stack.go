package captable

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidCapitalStructure flags malformed rounds or contradictory
// seniority metadata. Returned errors wrap this sentinel.
var ErrInvalidCapitalStructure = errors.New("invalid capital structure")

// SeniorityPolicy decides how rounds are ranked when no explicit seniority
// metadata is present. Explicit Seniority fields always win.
type SeniorityPolicy string

const (
	// SeniorityReverseChronological ranks later rounds senior (the usual VC
	// convention). Rounds sharing a date are pari passu.
	SeniorityReverseChronological SeniorityPolicy = "reverse_chronological"
	// SeniorityChronological ranks earlier rounds senior.
	SeniorityChronological SeniorityPolicy = "chronological"
	// SeniorityPariPassu puts every round in a single rank.
	SeniorityPariPassu SeniorityPolicy = "pari_passu"
)

// Rank is one seniority level. Multiple rounds in a rank are pari passu:
// when proceeds are insufficient their claims pro-rate by claim size.
type Rank struct {
	Rounds []FundingRound
}

// BaseClaim is the total preference claim of the rank.
func (rk Rank) BaseClaim() float64 {
	var total float64
	for _, r := range rk.Rounds {
		total += r.BaseClaim()
	}
	return total
}

// PreferenceStack is an ordered sequence of ranks, most-senior first.
type PreferenceStack struct {
	Ranks []Rank
}

// Rounds returns all rounds in seniority order (senior first).
func (s *PreferenceStack) Rounds() []FundingRound {
	var out []FundingRound
	for _, rk := range s.Ranks {
		out = append(out, rk.Rounds...)
	}
	return out
}

// TotalInvested sums AmountRaised across all rounds.
func (s *PreferenceStack) TotalInvested() float64 {
	var total float64
	for _, r := range s.Rounds() {
		total += r.AmountRaised
	}
	return total
}

// Find returns the round with the given name.
func (s *PreferenceStack) Find(name string) (FundingRound, bool) {
	for _, r := range s.Rounds() {
		if r.RoundName == name {
			return r, true
		}
	}
	return FundingRound{}, false
}

// BuildStack validates the rounds and orders them into a seniority-ranked
// stack. Validation failures wrap ErrInvalidCapitalStructure; a cap below
// the base preference is a configuration error, not something to clamp.
func BuildStack(rounds []FundingRound, policy SeniorityPolicy) (*PreferenceStack, error) {
	if len(rounds) == 0 {
		return nil, fmt.Errorf("%w: no funding rounds supplied", ErrInvalidCapitalStructure)
	}

	seen := make(map[string]bool, len(rounds))
	explicit := 0
	for _, r := range rounds {
		if r.RoundName == "" {
			return nil, fmt.Errorf("%w: round with empty name", ErrInvalidCapitalStructure)
		}
		if seen[r.RoundName] {
			return nil, fmt.Errorf("%w: duplicate round name %q", ErrInvalidCapitalStructure, r.RoundName)
		}
		seen[r.RoundName] = true
		if r.AmountRaised < 0 {
			return nil, fmt.Errorf("%w: round %q has negative amount raised", ErrInvalidCapitalStructure, r.RoundName)
		}
		if r.LiquidationMultiple < 0 {
			return nil, fmt.Errorf("%w: round %q has negative liquidation multiple", ErrInvalidCapitalStructure, r.RoundName)
		}
		switch r.LiquidationType {
		case Participating, NonParticipating:
		default:
			return nil, fmt.Errorf("%w: round %q has unknown liquidation type %q", ErrInvalidCapitalStructure, r.RoundName, r.LiquidationType)
		}
		if cap, ok := r.CapAmount(); ok {
			if r.LiquidationType != Participating {
				return nil, fmt.Errorf("%w: round %q sets a participation cap but is non-participating", ErrInvalidCapitalStructure, r.RoundName)
			}
			if cap < r.BaseClaim() {
				return nil, fmt.Errorf("%w: round %q participation cap %.2f is below its base preference %.2f", ErrInvalidCapitalStructure, r.RoundName, cap, r.BaseClaim())
			}
		}
		if r.Seniority != nil {
			explicit++
		}
	}

	// Mixing explicit and implicit ranks is contradictory metadata: we cannot
	// tell where the unranked rounds were meant to sit.
	if explicit > 0 && explicit != len(rounds) {
		return nil, fmt.Errorf("%w: %d of %d rounds carry explicit seniority; all or none must", ErrInvalidCapitalStructure, explicit, len(rounds))
	}

	type keyed struct {
		round FundingRound
		order int // insertion order, the final tie-break
	}
	ks := make([]keyed, len(rounds))
	for i, r := range rounds {
		ks[i] = keyed{round: r, order: i}
	}

	// rankKey groups rounds into pari passu ranks; lower key = more senior.
	rankKey := func(k keyed) int64 {
		if explicit > 0 {
			return int64(*k.round.Seniority)
		}
		switch policy {
		case SeniorityChronological:
			return k.round.RoundDate.Unix()
		case SeniorityPariPassu:
			return 0
		default: // reverse chronological
			return -k.round.RoundDate.Unix()
		}
	}

	sort.SliceStable(ks, func(i, j int) bool {
		ki, kj := rankKey(ks[i]), rankKey(ks[j])
		if ki != kj {
			return ki < kj
		}
		// Within a rank: later date first, then insertion order.
		if !ks[i].round.RoundDate.Equal(ks[j].round.RoundDate) {
			return ks[i].round.RoundDate.After(ks[j].round.RoundDate)
		}
		return ks[i].order < ks[j].order
	})

	stack := &PreferenceStack{}
	var current *Rank
	var currentKey int64
	for _, k := range ks {
		key := rankKey(k)
		if current == nil || key != currentKey {
			stack.Ranks = append(stack.Ranks, Rank{})
			current = &stack.Ranks[len(stack.Ranks)-1]
			currentKey = key
		}
		current.Rounds = append(current.Rounds, k.round)
	}
	return stack, nil
}
