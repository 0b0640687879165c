package report

import (
	"strings"
	"testing"

	"vc_waterfall/pkg/core/pwerm"
	"vc_waterfall/pkg/core/waterfall"
)

func sampleSummary() *pwerm.AggregateSummary {
	return &pwerm.AggregateSummary{
		FocusClass:          "common",
		ExpectedValue:       58e6,
		MedianValue:         20e6,
		P10:                 0,
		P25:                 0,
		P75:                 45e6,
		P90:                 125e6,
		SuccessProbability:  0.7,
		MegaExitProbability: 0.2,
		TotalInvested:       10e6,
		ExpectedByClass:     map[string]float64{"SeriesA": 7e6, "common": 58e6},
		Outcomes: []pwerm.ScenarioOutcome{
			{
				Scenario: pwerm.ExitScenario{ExitValue: 50e6, Probability: 0.5, ScenarioType: "acquisition"},
				Result:   &waterfall.Result{ExitValue: 50e6, Distributions: map[string]float64{"SeriesA": 10e6, "common": 40e6}},
			},
			{
				Scenario: pwerm.ExitScenario{ExitValue: 200e6, Probability: 0.2, ScenarioType: "ipo"},
				Result:   &waterfall.Result{ExitValue: 200e6, Distributions: map[string]float64{"common": 190e6, "SeriesA": 10e6}, Converted: []string{"SeriesA"}},
			},
		},
	}
}

func TestRender(t *testing.T) {
	md := Render("Acme Robotics", sampleSummary(), Metrics{IRR: 0.18, IRROK: true, MOIC: 5.8, MOICOK: true})

	for _, want := range []string{
		"# Exit Analysis: Acme Robotics",
		"| Expected value | $58.00M |",
		"| Success probability | 70.0% |",
		"| Expected IRR | 18.0% |",
		"| Expected MOIC | 5.80x |",
		"## Percentile Ladder",
		"| SeriesA | $7.00M |",
		"| ipo | 20.0% | $200.00M | SeriesA |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Report missing %q\n---\n%s", want, md)
		}
	}

	if !Validate(md) {
		t.Error("Rendered report failed markdown validation")
	}
}

func TestRenderUndefinedMetrics(t *testing.T) {
	md := Render("Acme", sampleSummary(), Metrics{})

	if !strings.Contains(md, "| Expected IRR | no solution |") {
		t.Error("Expected 'no solution' row for absent IRR")
	}
	if !strings.Contains(md, "| Expected MOIC | undefined |") {
		t.Error("Expected 'undefined' row for absent MOIC")
	}
}

func TestMoneyFormatting(t *testing.T) {
	cases := map[float64]string{
		2.5e9: "$2.50B",
		58e6:  "$58.00M",
		1.5e3: "$1.5K",
		42:    "$42.00",
		-3e6:  "$-3.00M",
	}
	for v, want := range cases {
		if got := money(v); got != want {
			t.Errorf("money(%f): expected %s, got %s", v, want, got)
		}
	}
}
