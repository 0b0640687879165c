// Package report renders a PWERM analysis as a markdown document for the
// charting/UI layer to display alongside the raw numbers.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"

	"vc_waterfall/pkg/core/pwerm"
)

// Metrics carries the return metrics that accompany the summary. The ok
// flags distinguish "undefined" from zero.
type Metrics struct {
	IRR    float64
	IRROK  bool
	MOIC   float64
	MOICOK bool
}

// Render produces the markdown analysis report.
func Render(company string, summary *pwerm.AggregateSummary, metrics Metrics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Exit Analysis: %s\n\n", company)

	focus := summary.FocusClass
	if focus == "" {
		focus = "total exit value"
	}
	fmt.Fprintf(&b, "Probability-weighted statistics for **%s** across %d scenarios.\n\n", focus, len(summary.Outcomes))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Expected value | %s |\n", money(summary.ExpectedValue))
	fmt.Fprintf(&b, "| Median value | %s |\n", money(summary.MedianValue))
	fmt.Fprintf(&b, "| Total invested | %s |\n", money(summary.TotalInvested))
	fmt.Fprintf(&b, "| Success probability | %.1f%% |\n", summary.SuccessProbability*100)
	fmt.Fprintf(&b, "| Mega-exit probability | %.1f%% |\n", summary.MegaExitProbability*100)
	if metrics.IRROK {
		fmt.Fprintf(&b, "| Expected IRR | %.1f%% |\n", metrics.IRR*100)
	} else {
		b.WriteString("| Expected IRR | no solution |\n")
	}
	if metrics.MOICOK {
		fmt.Fprintf(&b, "| Expected MOIC | %.2fx |\n", metrics.MOIC)
	} else {
		b.WriteString("| Expected MOIC | undefined |\n")
	}
	b.WriteString("\n")

	b.WriteString("## Percentile Ladder\n\n")
	b.WriteString("| P10 | P25 | Median | P75 | P90 |\n|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n\n",
		money(summary.P10), money(summary.P25), money(summary.MedianValue), money(summary.P75), money(summary.P90))

	b.WriteString("## Expected Proceeds by Class\n\n")
	b.WriteString("| Class | Expected |\n|---|---|\n")
	classes := make([]string, 0, len(summary.ExpectedByClass))
	for class := range summary.ExpectedByClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		fmt.Fprintf(&b, "| %s | %s |\n", class, money(summary.ExpectedByClass[class]))
	}
	b.WriteString("\n")

	if len(summary.Outcomes) > 0 {
		b.WriteString("## Scenarios\n\n")
		b.WriteString("| Scenario | Probability | Exit Value | Converted |\n|---|---|---|---|\n")
		for _, o := range summary.Outcomes {
			tag := o.Scenario.ScenarioType
			if tag == "" {
				tag = "-"
			}
			converted := "-"
			if len(o.Result.Converted) > 0 {
				converted = strings.Join(o.Result.Converted, ", ")
			}
			fmt.Fprintf(&b, "| %s | %.1f%% | %s | %s |\n",
				tag, o.Scenario.Probability*100, money(o.Scenario.ExitValue), converted)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// Validate checks that the report parses as Markdown using Goldmark.
// Goldmark is very permissive, so this is a basic sanity check.
func Validate(markdown string) bool {
	parser := goldmark.DefaultParser()
	reader := text.NewReader([]byte(markdown))
	doc := parser.Parse(reader)
	return doc != nil
}

func money(v float64) string {
	switch {
	case v >= 1e9 || v <= -1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6 || v <= -1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case v >= 1e3 || v <= -1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}
