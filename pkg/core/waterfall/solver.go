// Package waterfall distributes exit proceeds across a preference stack.
//
// The solver walks the stack most-senior first: preferences are paid rank by
// rank, non-participating rounds may instead convert to common when that pays
// more, and whatever survives the preference ladder is split pro rata across
// the common-equivalent pool (common shares, option pool, converted rounds,
// and participating preferred up to their caps).
package waterfall

import (
	"errors"
	"fmt"
	"math"

	"vc_waterfall/pkg/core/captable"
)

// ErrConservationViolation flags a fatal internal defect: the distributed
// total does not equal the exit value. It must never be swallowed.
var ErrConservationViolation = errors.New("conservation violation")

// ClassCommon is the class id holding founders' common plus the option pool.
const ClassCommon = "common"

// ConservationEpsilon is the relative tolerance on the conservation check.
const ConservationEpsilon = 1e-6

// Result is the per-scenario distribution: class id (round name or "common")
// to amount received. Invariant: the amounts sum to ExitValue.
type Result struct {
	ExitValue     float64            `json:"exit_value"`
	Distributions map[string]float64 `json:"distributions"`
	Converted     []string           `json:"converted,omitempty"` // rounds paid as-converted
}

// Class returns the amount distributed to a class, 0 for unknown ids.
func (r *Result) Class(id string) float64 {
	return r.Distributions[id]
}

// Total sums all distributed amounts.
func (r *Result) Total() float64 {
	var t float64
	for _, v := range r.Distributions {
		t += v
	}
	return t
}

// residualTaker is one participant in the residual common split.
type residualTaker struct {
	id       string
	shares   float64
	headroom float64 // remaining payout allowed; math.Inf(1) when uncapped
}

// Compute runs the single-scenario waterfall. Pure and side-effect-free; safe
// to invoke concurrently for independent scenarios.
func Compute(stack *captable.PreferenceStack, ct captable.CapTable, exitValue float64) (*Result, error) {
	if stack == nil || len(stack.Ranks) == 0 {
		return nil, fmt.Errorf("%w: empty preference stack", captable.ErrInvalidCapitalStructure)
	}
	if exitValue < 0 || math.IsNaN(exitValue) || math.IsInf(exitValue, 0) {
		return nil, fmt.Errorf("%w: exit value must be a finite number >= 0, got %v", captable.ErrInvalidCapitalStructure, exitValue)
	}

	res := &Result{
		ExitValue:     exitValue,
		Distributions: map[string]float64{ClassCommon: 0},
	}
	for _, r := range stack.Rounds() {
		res.Distributions[r.RoundName] = 0
	}

	remaining := exitValue
	commonPool := ct.CommonPool()

	// Conversion is a simultaneous choice: which non-participating rounds
	// forgo their preference for an as-converted common share. Resolved once
	// up front via a bounded fixed point over the whole stack.
	flags := conversionDecisions(stack.Rounds(), exitValue, commonPool)

	takers := []residualTaker{{id: ClassCommon, shares: commonPool, headroom: math.Inf(1)}}

	for _, rank := range stack.Ranks {
		if remaining <= 0 {
			break
		}

		// Claims owed at this rank: every round that is not converting.
		var rankClaim float64
		for _, r := range rank.Rounds {
			if !flags[r.RoundName] {
				rankClaim += r.BaseClaim()
			}
		}

		if rankClaim > remaining {
			// Shortfall: pari passu rounds pro-rate by claim size. Later
			// ranks and common receive nothing.
			for _, r := range rank.Rounds {
				if flags[r.RoundName] {
					continue
				}
				res.Distributions[r.RoundName] += remaining * r.BaseClaim() / rankClaim
			}
			remaining = 0
			break
		}

		for _, r := range rank.Rounds {
			if flags[r.RoundName] {
				// Converted: shares join the common-equivalent pool; the
				// payout arrives through the residual split below.
				takers = append(takers, residualTaker{id: r.RoundName, shares: r.PreferredShares(), headroom: math.Inf(1)})
				res.Converted = append(res.Converted, r.RoundName)
				continue
			}
			claim := r.BaseClaim()
			res.Distributions[r.RoundName] += claim
			remaining -= claim
			if r.LiquidationType == captable.Participating {
				headroom := math.Inf(1)
				if cap, ok := r.CapAmount(); ok {
					headroom = cap - claim
				}
				if headroom > 0 {
					takers = append(takers, residualTaker{id: r.RoundName, shares: r.PreferredShares(), headroom: headroom})
				}
			}
		}
	}

	if remaining > 0 {
		distributeResidual(res.Distributions, takers, remaining)
	}

	// Conservation: distributed must equal exit value exactly (within a fixed
	// epsilon). A violation is a logic defect and propagates loudly.
	if diff := math.Abs(res.Total() - exitValue); diff > ConservationEpsilon*math.Max(exitValue, 1.0) {
		return nil, fmt.Errorf("%w: distributed %.6f vs exit value %.6f", ErrConservationViolation, res.Total(), exitValue)
	}
	return res, nil
}

// distributeResidual splits the residual pro rata by shares, honoring
// participation caps. A taker that hits its cap is settled at the cap and
// removed; the freed amount re-pro-rates among the remaining takers.
func distributeResidual(dist map[string]float64, takers []residualTaker, residual float64) {
	active := make([]residualTaker, len(takers))
	copy(active, takers)

	for residual > 0 && len(active) > 0 {
		var totalShares float64
		for _, t := range active {
			totalShares += t.shares
		}
		if totalShares <= 0 {
			// Nobody holds shares (degenerate cap table): nothing more to
			// allocate. The conservation check upstream will flag this if it
			// ever produces a real mismatch on a non-empty pool.
			if c, ok := findTaker(active, ClassCommon); ok {
				dist[c.id] += residual
			}
			return
		}

		settled := false
		for i, t := range active {
			alloc := residual * t.shares / totalShares
			if alloc >= t.headroom {
				dist[t.id] += t.headroom
				residual -= t.headroom
				active = append(active[:i], active[i+1:]...)
				settled = true
				break
			}
		}
		if settled {
			continue
		}

		for _, t := range active {
			dist[t.id] += residual * t.shares / totalShares
		}
		return
	}
}

func findTaker(takers []residualTaker, id string) (residualTaker, bool) {
	for _, t := range takers {
		if t.id == id {
			return t, true
		}
	}
	return residualTaker{}, false
}
