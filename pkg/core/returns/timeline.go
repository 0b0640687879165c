package returns

import (
	"fmt"
	"time"

	"vc_waterfall/pkg/core/captable"
)

// BuildCashFlowTimeline converts funding rounds plus an exit into the yearly
// cash-flow series ComputeIRR expects: negative outflows in the year of each
// investment, the exit proceeds as the final inflow.
//
// Period 0 is the year of the earliest round; intermediate years with no
// activity are zero-filled so discounting periods line up.
func BuildCashFlowTimeline(rounds []captable.FundingRound, exitProceeds float64, exitDate time.Time) ([]float64, error) {
	if len(rounds) == 0 {
		return nil, fmt.Errorf("%w: no funding rounds for timeline", ErrInsufficientCashFlow)
	}

	first := rounds[0].RoundDate
	for _, r := range rounds[1:] {
		if r.RoundDate.Before(first) {
			first = r.RoundDate
		}
	}
	if exitDate.Before(first) {
		return nil, fmt.Errorf("%w: exit date %s precedes first round %s", ErrInsufficientCashFlow, exitDate.Format("2006-01-02"), first.Format("2006-01-02"))
	}

	exitPeriod := exitDate.Year() - first.Year()
	if exitPeriod < 1 {
		exitPeriod = 1 // same-year exit still needs a second point
	}

	flows := make([]float64, exitPeriod+1)
	for _, r := range rounds {
		t := r.RoundDate.Year() - first.Year()
		if t > exitPeriod {
			t = exitPeriod
		}
		flows[t] -= r.AmountRaised
	}
	flows[exitPeriod] += exitProceeds
	return flows, nil
}
