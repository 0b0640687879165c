package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	waterfallapi "vc_waterfall/pkg/api/waterfall"
	"vc_waterfall/pkg/core/config"
)

func main() {
	// Load environment variables
	godotenv.Load()

	cfgPath := os.Getenv("ENGINE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/engine.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[WARNING] Failed to load engine config: %v\n", err)
		fmt.Println("  Falling back to default policy")
	} else {
		fmt.Printf("[CONFIG] seniority=%s weight_tolerance=%.0e mega_exit=%.0fx\n",
			cfg.SeniorityPolicy, cfg.WeightTolerance, cfg.MegaExitMultiple)
	}
	waterfallapi.InitHandler(cfg)

	// Valuation engine endpoints
	http.HandleFunc("/api/waterfall", waterfallapi.HandleComputeWaterfall)
	http.HandleFunc("/api/pwerm", waterfallapi.HandleRunPWERM)
	http.HandleFunc("/api/irr", waterfallapi.HandleComputeIRR)
	http.HandleFunc("/api/liquidation-analysis", waterfallapi.HandleLiquidationAnalysis)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("API server starting on :%s...\n", port)
	fmt.Println("  - POST /api/waterfall              (single-scenario distribution)")
	fmt.Println("  - POST /api/pwerm                  (probability-weighted summary)")
	fmt.Println("  - POST /api/irr                    (cash-flow IRR)")
	fmt.Println("  - POST /api/liquidation-analysis   (full analysis + report)")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
