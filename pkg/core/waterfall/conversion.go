package waterfall

import (
	"vc_waterfall/pkg/core/captable"
)

// conversionDecisions resolves which non-participating rounds convert to
// common instead of taking their preference, as a simultaneous choice across
// the whole stack.
//
// Each round's as-converted value is an O(1) algebraic estimate given the
// other rounds' current choices: its pro-rata share of the proceeds left
// after every staying round takes its preference, in a pool diluted by the
// other converters and by participating shares. A round converts when that
// share beats its base claim. Because one round's choice moves the pool the
// others see, the comparison iterates to a fixed point; each decision can
// only flip a bounded number of times as the residual pool stabilizes, so
// the loop is capped at the round count.
//
// In the stable state the estimate equals the converter's actual residual
// share (stayers take exactly their base claims), which keeps each class's
// payout continuous across its conversion threshold.
func conversionDecisions(rounds []captable.FundingRound, exitValue, basePool float64) map[string]bool {
	flags := make(map[string]bool, len(rounds))

	for iter := 0; iter <= len(rounds); iter++ {
		changed := false
		for _, r := range rounds {
			if r.LiquidationType != captable.NonParticipating {
				continue
			}
			shares := r.PreferredShares()
			if shares <= 0 {
				continue // no known share count, conversion undefined
			}

			poolShares := basePool + shares
			var stayerClaims float64
			for _, other := range rounds {
				if other.RoundName == r.RoundName {
					continue
				}
				switch {
				case other.LiquidationType == captable.NonParticipating && flags[other.RoundName]:
					poolShares += other.PreferredShares()
				case other.LiquidationType == captable.Participating:
					// Participating rounds take their claim and dilute the
					// residual. Cap effects are ignored in the estimate.
					stayerClaims += other.BaseClaim()
					poolShares += other.PreferredShares()
				default:
					stayerClaims += other.BaseClaim()
				}
			}

			poolValue := exitValue - stayerClaims
			if poolValue < 0 {
				poolValue = 0
			}

			converts := poolValue*shares/poolShares > r.BaseClaim()
			if converts != flags[r.RoundName] {
				flags[r.RoundName] = converts
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return flags
}

// ConversionThreshold computes the exit value above which a non-participating
// round is better off converting to common than taking its preference.
//
// The threshold solves: as-converted share at exit T == base claim, under the
// baseline assumption that every other round takes its preference. Because
// the pro-rata share is linear in the exit value once the other claims are
// fixed, T has a closed form:
//
//	T = otherClaims + baseClaim * (pool + shares) / shares
//
// The second return is false when the round is missing, participating, or
// has no known share count.
func ConversionThreshold(stack *captable.PreferenceStack, ct captable.CapTable, roundName string) (float64, bool) {
	round, ok := stack.Find(roundName)
	if !ok || round.LiquidationType != captable.NonParticipating {
		return 0, false
	}
	shares := round.PreferredShares()
	if shares <= 0 {
		return 0, false
	}

	pool := ct.CommonPool()
	var otherClaims float64
	for _, r := range stack.Rounds() {
		if r.RoundName == roundName {
			continue
		}
		otherClaims += r.BaseClaim()
		if r.LiquidationType == captable.Participating {
			pool += r.PreferredShares()
		}
	}

	return otherClaims + round.BaseClaim()*(pool+shares)/shares, true
}
