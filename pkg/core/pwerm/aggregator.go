// Package pwerm implements the Probability-Weighted Expected Return Method:
// it runs the waterfall solver over a set of weighted exit scenarios and
// rolls the per-scenario distributions up into summary statistics.
package pwerm

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"vc_waterfall/pkg/core/captable"
	"vc_waterfall/pkg/core/waterfall"
)

// ErrScenarioWeight flags probabilities that do not sum to 1 within the
// configured tolerance. The engine never renormalizes silently.
var ErrScenarioWeight = errors.New("scenario weights do not sum to 1")

// ExitScenario is one weighted future exit. ScenarioType (ipo, acquisition,
// liquidation, writeoff) is a reporting tag only; the math ignores it.
type ExitScenario struct {
	ExitValue    float64 `json:"exit_value"`
	Probability  float64 `json:"probability"`
	ScenarioType string  `json:"scenario_type,omitempty"`
}

// Config carries the aggregation policy knobs.
type Config struct {
	// WeightTolerance is the allowed deviation of the probability sum from 1.
	WeightTolerance float64
	// Renormalize, when explicitly enabled, rescales out-of-tolerance weights
	// instead of failing. Off by default.
	Renormalize bool
	// MegaExitMultiple defines the mega-exit threshold as a multiple of total
	// invested capital (e.g. 10x).
	MegaExitMultiple float64
	// FocusClass selects whose distribution drives the expected value and
	// percentile ladder: a round name, "common", or empty for the total exit
	// value itself.
	FocusClass string
}

// DefaultConfig returns the standard policy: 1e-4 weight tolerance, no
// renormalization, 10x mega-exit threshold.
func DefaultConfig() Config {
	return Config{
		WeightTolerance:  1e-4,
		MegaExitMultiple: 10,
	}
}

// ScenarioOutcome pairs a scenario with its solved distribution.
type ScenarioOutcome struct {
	Scenario ExitScenario      `json:"scenario"`
	Result   *waterfall.Result `json:"result"`
}

// AggregateSummary is the PWERM roll-up. Stateless; the engine does not
// persist it.
type AggregateSummary struct {
	FocusClass          string             `json:"focus_class,omitempty"`
	ExpectedValue       float64            `json:"expected_value"`
	MedianValue         float64            `json:"median_value"`
	P10                 float64            `json:"p10"`
	P25                 float64            `json:"p25"`
	P75                 float64            `json:"p75"`
	P90                 float64            `json:"p90"`
	SuccessProbability  float64            `json:"success_probability"`
	MegaExitProbability float64            `json:"mega_exit_probability"`
	TotalInvested       float64            `json:"total_invested"`
	ExpectedByClass     map[string]float64 `json:"expected_by_class"`
	Outcomes            []ScenarioOutcome  `json:"outcomes,omitempty"`
}

// Run evaluates every scenario through the waterfall solver (concurrently,
// scenarios are independent) and aggregates the results. Scenario order does
// not affect any output.
func Run(stack *captable.PreferenceStack, ct captable.CapTable, scenarios []ExitScenario, cfg Config) (*AggregateSummary, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("%w: no scenarios supplied", ErrScenarioWeight)
	}
	if cfg.WeightTolerance <= 0 {
		cfg.WeightTolerance = 1e-4
	}
	if cfg.MegaExitMultiple <= 0 {
		cfg.MegaExitMultiple = 10
	}

	var weightSum float64
	for i, s := range scenarios {
		if s.ExitValue < 0 || math.IsNaN(s.ExitValue) || math.IsInf(s.ExitValue, 0) {
			return nil, fmt.Errorf("%w: scenario %d has invalid exit value %v", captable.ErrInvalidCapitalStructure, i, s.ExitValue)
		}
		if s.Probability < 0 || s.Probability > 1 || math.IsNaN(s.Probability) {
			return nil, fmt.Errorf("%w: scenario %d has probability %v outside [0,1]", ErrScenarioWeight, i, s.Probability)
		}
		weightSum += s.Probability
	}
	if math.Abs(weightSum-1) > cfg.WeightTolerance {
		if !cfg.Renormalize {
			return nil, fmt.Errorf("%w: sum is %.6f (tolerance %.0e)", ErrScenarioWeight, weightSum, cfg.WeightTolerance)
		}
		if weightSum <= 0 {
			return nil, fmt.Errorf("%w: sum is %.6f, cannot renormalize", ErrScenarioWeight, weightSum)
		}
		rescaled := make([]ExitScenario, len(scenarios))
		for i, s := range scenarios {
			s.Probability /= weightSum
			rescaled[i] = s
		}
		scenarios = rescaled
	}

	// Parallel evaluation: the solver is pure, so scenarios fan out with no
	// shared mutable state beyond the indexed result slots.
	outcomes := make([]ScenarioOutcome, len(scenarios))
	errs := make([]error, len(scenarios))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	for i, s := range scenarios {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, s ExitScenario) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := waterfall.Compute(stack, ct, s.ExitValue)
			if err != nil {
				errs[i] = err
				return
			}
			outcomes[i] = ScenarioOutcome{Scenario: s, Result: res}
		}(i, s)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return aggregate(stack, outcomes, cfg), nil
}

func aggregate(stack *captable.PreferenceStack, outcomes []ScenarioOutcome, cfg Config) *AggregateSummary {
	invested := stack.TotalInvested()

	summary := &AggregateSummary{
		FocusClass:      cfg.FocusClass,
		TotalInvested:   invested,
		ExpectedByClass: make(map[string]float64),
		Outcomes:        outcomes,
	}

	focus := func(o ScenarioOutcome) float64 {
		if cfg.FocusClass == "" {
			return o.Scenario.ExitValue
		}
		return o.Result.Class(cfg.FocusClass)
	}

	megaThreshold := cfg.MegaExitMultiple * invested
	for _, o := range outcomes {
		p := o.Scenario.Probability
		summary.ExpectedValue += p * focus(o)
		for class, amount := range o.Result.Distributions {
			summary.ExpectedByClass[class] += p * amount
		}
		if o.Scenario.ExitValue >= invested {
			summary.SuccessProbability += p
		}
		if o.Scenario.ExitValue >= megaThreshold {
			summary.MegaExitProbability += p
		}
	}

	// Percentiles on the probability-weighted empirical distribution of the
	// focus value.
	sorted := make([]ScenarioOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool { return focus(sorted[i]) < focus(sorted[j]) })

	values := make([]float64, len(sorted))
	probs := make([]float64, len(sorted))
	for i, o := range sorted {
		values[i] = focus(o)
		probs[i] = o.Scenario.Probability
	}

	summary.P10 = weightedQuantile(values, probs, 0.10)
	summary.P25 = weightedQuantile(values, probs, 0.25)
	summary.MedianValue = weightedQuantile(values, probs, 0.50)
	summary.P75 = weightedQuantile(values, probs, 0.75)
	summary.P90 = weightedQuantile(values, probs, 0.90)

	return summary
}

// weightedQuantile walks the cumulative probability of the (sorted) values
// and linearly interpolates between the two bracketing scenarios when the
// quantile falls between them.
func weightedQuantile(values, probs []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	prevValue := values[0]
	prevCum := 0.0
	cum := 0.0
	for i := range values {
		cum += probs[i]
		if cum >= q {
			if cum == prevCum {
				return values[i]
			}
			frac := (q - prevCum) / (cum - prevCum)
			return prevValue + frac*(values[i]-prevValue)
		}
		prevCum = cum
		prevValue = values[i]
	}
	return values[len(values)-1]
}
