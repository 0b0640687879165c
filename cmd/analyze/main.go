package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"vc_waterfall/pkg/core/captable"
	"vc_waterfall/pkg/core/config"
	"vc_waterfall/pkg/core/pwerm"
	"vc_waterfall/pkg/core/report"
	"vc_waterfall/pkg/core/returns"
	"vc_waterfall/pkg/core/utils"
)

// AnalysisFile is the analyst-authored input: JSON or Hjson.
type AnalysisFile struct {
	Company    string                  `json:"company"`
	Rounds     []captable.FundingRound `json:"rounds"`
	CapTable   captable.CapTable       `json:"cap_table"`
	Scenarios  []pwerm.ExitScenario    `json:"scenarios"`
	FocusClass string                  `json:"focus_class,omitempty"`
	ExitDate   time.Time               `json:"exit_date,omitempty"`
}

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Println("[ENV] Loaded .env")
	}

	inputPath := flag.String("input", "", "analysis file (JSON or Hjson)")
	cfgPath := flag.String("config", "config/engine.yaml", "engine config path")
	focus := flag.String("focus", "", "focus class override (round name or 'common')")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("Error: -input is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Printf("[WARNING] Failed to load engine config: %v\n", err)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("Error: failed to read %s: %v", *inputPath, err)
	}

	var file AnalysisFile
	if _, err := utils.SmartParse(string(data), &file); err != nil {
		log.Fatalf("Error: failed to parse %s: %v", *inputPath, err)
	}
	fmt.Printf("[ANALYZE] %s: %d rounds, %d scenarios\n", file.Company, len(file.Rounds), len(file.Scenarios))

	// 1. Build the preference stack
	stack, err := captable.BuildStack(file.Rounds, cfg.Policy())
	if err != nil {
		log.Fatalf("Error: invalid capital structure: %v", err)
	}
	fmt.Printf("[ANALYZE] Stack built: %d seniority ranks, %.2f invested\n", len(stack.Ranks), stack.TotalInvested())

	// 2. Run PWERM across scenarios
	pcfg := cfg.PWERM()
	if *focus != "" {
		pcfg.FocusClass = *focus
	} else if file.FocusClass != "" {
		pcfg.FocusClass = file.FocusClass
	}
	summary, err := pwerm.Run(stack, file.CapTable, file.Scenarios, pcfg)
	if err != nil {
		log.Fatalf("Error: PWERM run failed: %v", err)
	}

	// 3. Return metrics from the derived cash-flow timeline
	exitDate := file.ExitDate
	if exitDate.IsZero() {
		latest := file.Rounds[0].RoundDate
		for _, r := range file.Rounds {
			if r.RoundDate.After(latest) {
				latest = r.RoundDate
			}
		}
		exitDate = latest.AddDate(5, 0, 0)
		fmt.Printf("[ANALYZE] No exit date supplied, assuming %s\n", exitDate.Format("2006-01-02"))
	}

	metrics := report.Metrics{}
	flows, err := returns.BuildCashFlowTimeline(file.Rounds, summary.ExpectedValue, exitDate)
	if err != nil {
		fmt.Printf("[WARNING] Timeline build failed, skipping IRR: %v\n", err)
	} else {
		metrics.IRR, metrics.IRROK, err = returns.ComputeIRR(flows)
		if err != nil {
			log.Fatalf("Error: IRR computation rejected input: %v", err)
		}
	}
	metrics.MOIC, metrics.MOICOK = returns.ComputeMOIC(summary.ExpectedValue, summary.TotalInvested)

	// 4. Render the report
	md := report.Render(file.Company, summary, metrics)
	if !report.Validate(md) {
		log.Fatal("Error: generated report failed markdown validation")
	}
	fmt.Println(md)
}
