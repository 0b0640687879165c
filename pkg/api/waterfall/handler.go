// Package waterfall exposes the valuation engine over HTTP for the portfolio
// application. The handlers are a thin transport: parse, call the engine,
// map errors to status codes. No persistence or auth happens here — those
// layers sit outside.
package waterfall

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vc_waterfall/pkg/core/captable"
	"vc_waterfall/pkg/core/config"
	"vc_waterfall/pkg/core/pwerm"
	"vc_waterfall/pkg/core/report"
	"vc_waterfall/pkg/core/returns"
	"vc_waterfall/pkg/core/utils"
	coreWaterfall "vc_waterfall/pkg/core/waterfall"
)

var engineCfg = config.Default()

// InitHandler installs the engine policy the handlers run with.
func InitHandler(cfg config.EngineConfig) {
	engineCfg = cfg
}

// WaterfallRequest is the payload for a single-scenario distribution.
type WaterfallRequest struct {
	Rounds    []captable.FundingRound `json:"rounds"`
	CapTable  captable.CapTable       `json:"cap_table"`
	ExitValue float64                 `json:"exit_value"`
}

// PWERMRequest is the payload for a probability-weighted run.
type PWERMRequest struct {
	Rounds     []captable.FundingRound `json:"rounds"`
	CapTable   captable.CapTable       `json:"cap_table"`
	Scenarios  []pwerm.ExitScenario    `json:"scenarios"`
	FocusClass string                  `json:"focus_class,omitempty"`
}

// IRRRequest is the payload for a standalone IRR computation.
type IRRRequest struct {
	CashFlows     []float64 `json:"cash_flows"`
	MaxIterations int       `json:"max_iterations,omitempty"`
	Tolerance     float64   `json:"tolerance,omitempty"`
}

// IRRResponse reports the rate, or null when no economically meaningful
// solution exists (a normal outcome, not an error).
type IRRResponse struct {
	IRR *float64 `json:"irr"`
}

// AnalysisRequest drives the full liquidation analysis: stack build, PWERM,
// and return metrics from the derived cash-flow timeline.
type AnalysisRequest struct {
	Company    string                  `json:"company"`
	Rounds     []captable.FundingRound `json:"rounds"`
	CapTable   captable.CapTable       `json:"cap_table"`
	Scenarios  []pwerm.ExitScenario    `json:"scenarios"`
	FocusClass string                  `json:"focus_class,omitempty"`
	// ExitDate anchors the cash-flow timeline. Defaults to five years after
	// the latest round when unset.
	ExitDate time.Time `json:"exit_date,omitempty"`
}

// AnalysisResponse is the combined payload for the UI and audit layers.
type AnalysisResponse struct {
	AnalysisID string                  `json:"analysis_id"`
	Company    string                  `json:"company"`
	Summary    *pwerm.AggregateSummary `json:"summary"`
	IRR        *float64                `json:"irr"`
	MOIC       *float64                `json:"moic"`
	CashFlows  []float64               `json:"cash_flows"`
	Report     string                  `json:"report,omitempty"`
}

// decodeBody reads the request body through SmartParse so sloppy JSON from
// upstream extraction still decodes.
func decodeBody(r *http.Request, schema interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if _, err := utils.SmartParse(string(body), schema); err != nil {
		return err
	}
	return nil
}

// writeEngineError maps engine error taxonomy to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, captable.ErrInvalidCapitalStructure):
		status = http.StatusBadRequest
	case errors.Is(err, returns.ErrInsufficientCashFlow):
		status = http.StatusBadRequest
	case errors.Is(err, pwerm.ErrScenarioWeight):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, coreWaterfall.ErrConservationViolation):
		// Logic defect, never a client problem. Fail loudly.
		fmt.Printf("[FATAL] %v\n", err)
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func applyCORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

// HandleComputeWaterfall solves one exit value against the capital structure.
func HandleComputeWaterfall(w http.ResponseWriter, r *http.Request) {
	if applyCORS(w, r) {
		return
	}

	var req WaterfallRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fmt.Printf("[WATERFALL] Request: %d rounds, exit %.2f\n", len(req.Rounds), req.ExitValue)

	stack, err := captable.BuildStack(req.Rounds, engineCfg.Policy())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	result, err := coreWaterfall.Compute(stack, req.CapTable, req.ExitValue)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, result)
}

// HandleRunPWERM runs the scenario aggregator.
func HandleRunPWERM(w http.ResponseWriter, r *http.Request) {
	if applyCORS(w, r) {
		return
	}

	var req PWERMRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fmt.Printf("[PWERM] Request: %d rounds, %d scenarios\n", len(req.Rounds), len(req.Scenarios))

	stack, err := captable.BuildStack(req.Rounds, engineCfg.Policy())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	cfg := engineCfg.PWERM()
	if req.FocusClass != "" {
		cfg.FocusClass = req.FocusClass
	}
	summary, err := pwerm.Run(stack, req.CapTable, req.Scenarios, cfg)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, summary)
}

// HandleComputeIRR solves the IRR for a caller-supplied cash-flow series.
func HandleComputeIRR(w http.ResponseWriter, r *http.Request) {
	if applyCORS(w, r) {
		return
	}

	var req IRRRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rate, ok, err := returns.ComputeIRRWithOptions(req.CashFlows, req.MaxIterations, req.Tolerance)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := IRRResponse{}
	if ok {
		resp.IRR = &rate
	}
	writeJSON(w, resp)
}

// HandleLiquidationAnalysis is the full orchestration used by the portfolio
// dashboard: stack build, PWERM, IRR/MOIC from the derived timeline, plus a
// markdown report.
func HandleLiquidationAnalysis(w http.ResponseWriter, r *http.Request) {
	if applyCORS(w, r) {
		return
	}

	var req AnalysisRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	analysisID := uuid.New().String()
	fmt.Printf("[ANALYSIS] %s: %s, %d rounds, %d scenarios\n", analysisID, req.Company, len(req.Rounds), len(req.Scenarios))

	stack, err := captable.BuildStack(req.Rounds, engineCfg.Policy())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	cfg := engineCfg.PWERM()
	if req.FocusClass != "" {
		cfg.FocusClass = req.FocusClass
	}
	summary, err := pwerm.Run(stack, req.CapTable, req.Scenarios, cfg)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	exitDate := req.ExitDate
	if exitDate.IsZero() {
		latest := stack.Rounds()[0].RoundDate
		for _, rd := range stack.Rounds() {
			if rd.RoundDate.After(latest) {
				latest = rd.RoundDate
			}
		}
		exitDate = latest.AddDate(5, 0, 0)
	}

	// Return metrics use the investor-side proceeds: the focus class when
	// set, otherwise the whole exit value.
	flows, err := returns.BuildCashFlowTimeline(req.Rounds, summary.ExpectedValue, exitDate)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rate, irrOK, err := returns.ComputeIRR(flows)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	moic, moicOK := returns.ComputeMOIC(summary.ExpectedValue, summary.TotalInvested)

	metrics := report.Metrics{IRR: rate, IRROK: irrOK, MOIC: moic, MOICOK: moicOK}
	resp := AnalysisResponse{
		AnalysisID: analysisID,
		Company:    req.Company,
		Summary:    summary,
		CashFlows:  flows,
		Report:     report.Render(req.Company, summary, metrics),
	}
	if irrOK {
		resp.IRR = &rate
	}
	if moicOK {
		resp.MOIC = &moic
	}
	writeJSON(w, resp)
}
