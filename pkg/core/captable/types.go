package captable

import (
	"time"
)

// LiquidationType distinguishes how a preferred round behaves at exit.
type LiquidationType string

const (
	// Participating preferred takes its preference AND shares in the residual
	// common distribution (optionally up to a cap).
	Participating LiquidationType = "participating"
	// NonParticipating preferred takes the greater of its preference and its
	// as-converted common share.
	NonParticipating LiquidationType = "non_participating"
)

// FundingRound is one preferred financing round as supplied by the cap-table
// store. Immutable once constructed; the engine never mutates it.
type FundingRound struct {
	RoundName           string             `json:"round_name"`
	AmountRaised        float64            `json:"amount_raised"`
	PreMoneyValuation   float64            `json:"pre_money_valuation"`
	LiquidationMultiple float64            `json:"liquidation_multiple"` // typically 1.0 - 3.0
	LiquidationType     LiquidationType    `json:"liquidation_type"`
	PricePerShare       float64            `json:"price_per_share"`
	Investors           map[string]float64 `json:"investors,omitempty"`
	RoundDate           time.Time          `json:"round_date"`

	// ParticipationCap is a money ceiling on total payout (preference +
	// participation). ParticipationCapMultiple is the alternative input form
	// (multiple of AmountRaised); it is resolved to money at stack build time.
	ParticipationCap         *float64 `json:"participation_cap,omitempty"`
	ParticipationCapMultiple *float64 `json:"participation_cap_multiple,omitempty"`

	// Seniority is an optional explicit rank (lower = more senior). When any
	// round carries one, all rounds must.
	Seniority *int `json:"seniority,omitempty"`
}

// BaseClaim is the liquidation preference amount: invested * multiple.
func (r FundingRound) BaseClaim() float64 {
	return r.AmountRaised * r.LiquidationMultiple
}

// PreferredShares is the share count implied by the round's price per share.
// Returns 0 when no price is known (the round then never converts).
func (r FundingRound) PreferredShares() float64 {
	if r.PricePerShare <= 0 {
		return 0
	}
	return r.AmountRaised / r.PricePerShare
}

// CapAmount resolves the participation cap to a money value.
// The second return is false when the round is uncapped.
func (r FundingRound) CapAmount() (float64, bool) {
	if r.ParticipationCap != nil {
		return *r.ParticipationCap, true
	}
	if r.ParticipationCapMultiple != nil {
		return r.AmountRaised * (*r.ParticipationCapMultiple), true
	}
	return 0, false
}

// CapTable holds the common-equivalent share counts used to compute pro-rata
// splits once preferences are cleared. Preferred share counts live on the
// rounds themselves (implied by amount / price).
type CapTable struct {
	CommonShares     float64 `json:"common_shares"`
	OptionPoolShares float64 `json:"option_pool_shares"`
}

// CommonPool is the baseline common-equivalent pool (founders + option pool).
func (c CapTable) CommonPool() float64 {
	return c.CommonShares + c.OptionPoolShares
}
