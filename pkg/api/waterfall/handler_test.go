package waterfall

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	coreWaterfall "vc_waterfall/pkg/core/waterfall"
)

const workedExampleBody = `{
	"rounds": [
		{"round_name": "SeriesA", "amount_raised": 10000000, "liquidation_multiple": 1, "liquidation_type": "non_participating", "price_per_share": 5, "round_date": "2020-03-01T00:00:00Z"},
		{"round_name": "SeriesB", "amount_raised": 20000000, "liquidation_multiple": 2, "liquidation_type": "non_participating", "price_per_share": 10, "round_date": "2022-06-01T00:00:00Z"}
	],
	"cap_table": {"common_shares": 6000000, "option_pool_shares": 0},
	"exit_value": 100000000
}`

func TestHandleComputeWaterfall(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/waterfall", strings.NewReader(workedExampleBody))
	w := httptest.NewRecorder()

	HandleComputeWaterfall(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res coreWaterfall.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got := res.Class("SeriesB"); math.Abs(got-40e6) > 1 {
		t.Errorf("SeriesB expected 40M, got %f", got)
	}
	if math.Abs(res.Total()-100e6) > 1 {
		t.Errorf("Conservation: total %f != 100M", res.Total())
	}
}

func TestHandleComputeWaterfallBadStructure(t *testing.T) {
	body := strings.Replace(workedExampleBody, `"amount_raised": 10000000`, `"amount_raised": -1`, 1)
	req := httptest.NewRequest("POST", "/api/waterfall", strings.NewReader(body))
	w := httptest.NewRecorder()

	HandleComputeWaterfall(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative amount, got %d", w.Code)
	}
}

func TestHandleRunPWERMWeightError(t *testing.T) {
	body := `{
		"rounds": [
			{"round_name": "SeriesA", "amount_raised": 10000000, "liquidation_multiple": 1, "liquidation_type": "non_participating", "round_date": "2021-01-01T00:00:00Z"}
		],
		"cap_table": {"common_shares": 1000000},
		"scenarios": [
			{"exit_value": 0, "probability": 0.3},
			{"exit_value": 50000000, "probability": 0.47},
			{"exit_value": 200000000, "probability": 0.2}
		]
	}`
	req := httptest.NewRequest("POST", "/api/pwerm", strings.NewReader(body))
	w := httptest.NewRecorder()

	HandleRunPWERM(w, req)

	// Weights summing to 0.97 are rejected, never renormalized silently.
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for weight error, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleComputeIRR(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/irr", strings.NewReader(`{"cash_flows": [-100, 0, 0, 0, 0, 161.05]}`))
	w := httptest.NewRecorder()

	HandleComputeIRR(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp IRRResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.IRR == nil || math.Abs(*resp.IRR-0.10) > 1e-3 {
		t.Errorf("Expected IRR ~0.10, got %v", resp.IRR)
	}
}

func TestHandleComputeIRRNoSolution(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/irr", strings.NewReader(`{"cash_flows": [100, 50]}`))
	w := httptest.NewRecorder()

	HandleComputeIRR(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 (no solution is not an error), got %d", w.Code)
	}
	var resp IRRResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.IRR != nil {
		t.Errorf("Expected null IRR, got %v", *resp.IRR)
	}
}

func TestHandleLiquidationAnalysis(t *testing.T) {
	body := `{
		"company": "Acme Robotics",
		"rounds": [
			{"round_name": "SeriesA", "amount_raised": 10000000, "liquidation_multiple": 1, "liquidation_type": "non_participating", "round_date": "2021-01-01T00:00:00Z"}
		],
		"cap_table": {"common_shares": 1000000},
		"scenarios": [
			{"exit_value": 0, "probability": 0.3, "scenario_type": "writeoff"},
			{"exit_value": 50000000, "probability": 0.5, "scenario_type": "acquisition"},
			{"exit_value": 200000000, "probability": 0.2, "scenario_type": "ipo"}
		]
	}`
	req := httptest.NewRequest("POST", "/api/liquidation-analysis", strings.NewReader(body))
	w := httptest.NewRecorder()

	HandleLiquidationAnalysis(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp AnalysisResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.AnalysisID == "" {
		t.Error("Expected an analysis id")
	}
	if resp.Summary == nil || math.Abs(resp.Summary.ExpectedValue-65e6) > 1 {
		t.Errorf("Expected summary EV 65M, got %+v", resp.Summary)
	}
	if resp.MOIC == nil || math.Abs(*resp.MOIC-6.5) > 1e-6 {
		t.Errorf("Expected MOIC 6.5x, got %v", resp.MOIC)
	}
	if !strings.Contains(resp.Report, "# Exit Analysis: Acme Robotics") {
		t.Error("Expected markdown report in response")
	}
}

func TestHandleCORSPreflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/api/waterfall", nil)
	w := httptest.NewRecorder()

	HandleComputeWaterfall(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 on preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS headers on preflight")
	}
}
