// Package returns computes investor return metrics (IRR, MOIC) from a
// cash-flow timeline derived from aggregated exit proceeds.
package returns

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientCashFlow flags an IRR request with fewer than two points or
// non-finite values. Raised before any iteration starts.
var ErrInsufficientCashFlow = errors.New("insufficient cash flow data")

const (
	// DefaultMaxIterations bounds the Newton-Raphson loop.
	DefaultMaxIterations = 100
	// DefaultTolerance is the early-stop threshold on |NPV|.
	DefaultTolerance = 1e-7

	// derivativeFloor aborts the iteration when NPV' is flat: no progress
	// is possible from here.
	derivativeFloor = 1e-15
	// acceptanceTolerance is the looser absolute |NPV| bound applied after
	// the iteration budget is exhausted.
	acceptanceTolerance = 0.01
	// rateCeiling: roots above this are explosive/divergent and outside any
	// economically meaningful range.
	rateCeiling = 10.0
)

// NPV is the net present value of the series at annual rate r, with
// cashFlows[t] occurring at period t.
func NPV(rate float64, cashFlows []float64) float64 {
	var npv float64
	for t, cf := range cashFlows {
		npv += cf / math.Pow(1+rate, float64(t))
	}
	return npv
}

// npvDerivative is d(NPV)/dr = sum of -t*CF_t / (1+r)^(t+1).
func npvDerivative(rate float64, cashFlows []float64) float64 {
	var d float64
	for t, cf := range cashFlows {
		d += -float64(t) * cf / math.Pow(1+rate, float64(t+1))
	}
	return d
}

// ComputeIRR solves NPV(r) = 0 with the default iteration budget and
// tolerance. The bool is false when no economically meaningful rate exists
// (non-convergence, flat derivative, or a root beyond the ceiling) — that is
// a normal outcome, not an error. The error covers invalid input only.
func ComputeIRR(cashFlows []float64) (float64, bool, error) {
	return ComputeIRRWithOptions(cashFlows, DefaultMaxIterations, DefaultTolerance)
}

// ComputeIRRWithOptions is ComputeIRR with an explicit iteration budget and
// early-stop tolerance.
func ComputeIRRWithOptions(cashFlows []float64, maxIterations int, tolerance float64) (float64, bool, error) {
	if len(cashFlows) < 2 {
		return 0, false, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientCashFlow, len(cashFlows))
	}
	for t, cf := range cashFlows {
		if math.IsNaN(cf) || math.IsInf(cf, 0) {
			return 0, false, fmt.Errorf("%w: non-finite value %v at period %d", ErrInsufficientCashFlow, cf, t)
		}
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	rate := 0.10 // standard initial guess
	for i := 0; i < maxIterations; i++ {
		npv := NPV(rate, cashFlows)
		if math.Abs(npv) < tolerance {
			return rate, true, nil
		}

		deriv := npvDerivative(rate, cashFlows)
		if math.Abs(deriv) < derivativeFloor {
			return 0, false, nil // flat derivative, no progress possible
		}

		rate -= npv / deriv
		if rate <= -1 {
			rate = -0.99
		}
		if rate > rateCeiling {
			return 0, false, nil
		}
	}

	// Budget exhausted: accept only if we landed close enough.
	if math.Abs(NPV(rate, cashFlows)) < acceptanceTolerance {
		return rate, true, nil
	}
	return 0, false, nil
}

// ComputeMOIC is proceeds / invested. The bool is false when invested is
// zero: the multiple is undefined, reported rather than computed.
func ComputeMOIC(expectedProceeds, totalInvested float64) (float64, bool) {
	if totalInvested == 0 {
		return 0, false
	}
	return expectedProceeds / totalInvested, true
}
