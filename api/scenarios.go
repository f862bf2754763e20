/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	partner agreements, revenue and payouts. Dates are relative to the
	service clock so the most recent periods are always "just ended".

AVAILABLE SCENARIOS:

	standard-percentage: 30% partner with three months of payouts
	minimum-guarantee:   Floor beats the baseline share in a slow month
	adjusted-payout:     Payout with increase/decrease corrections, one completed
	rule-change:         Fixed-term promo rate followed by a new rule

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Register rules via factory JSON presets
 3. Record revenue with unique references
 4. Create payouts for ended periods
 5. Optionally add adjustments and transitions

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "adjusted-payout"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - settlement/presets.go: Rule JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/warp/revenue-share/settlement"
	"github.com/warp/revenue-share/split"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-percentage",
		Name:        "Standard Percentage",
		Description: "30% revenue share with three monthly payouts",
	},
	{
		ID:          "minimum-guarantee",
		Name:        "Minimum Guarantee",
		Description: "$50,000 floor over a 30% baseline; the floor wins in the slow month",
	},
	{
		ID:          "adjusted-payout",
		Name:        "Adjusted Payout",
		Description: "Late invoice and refund corrections on a pending payout, plus a completed one",
	},
	{
		ID:          "rule-change",
		Name:        "Rule Change",
		Description: "Fixed-term 20% promo followed by a 35% open-ended rule",
	},
}

var scenarioActor = settlement.Actor{ID: "scenario-loader", Type: "system"}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context) error
	switch req.ScenarioID {
	case "standard-percentage":
		loader = h.loadStandardPercentageScenario
	case "minimum-guarantee":
		loader = h.loadMinimumGuaranteeScenario
	case "adjusted-payout":
		loader = h.loadAdjustedPayoutScenario
	case "rule-change":
		loader = h.loadRuleChangeScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Service.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	if err := loader(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Service.Reset(r.Context()); err != nil {
		writeServiceError(w, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardPercentageScenario(ctx context.Context) error {
	months := h.recentMonths(3)
	start := months[0].Start.Format(split.DateLayout)
	if err := h.registerRuleJSON(ctx, settlement.PercentageRuleJSON("rule-acme", "acme", 30, start)); err != nil {
		return err
	}

	for i, m := range months {
		amount := split.Cents(10_000_000 + int64(i)*2_500_000)
		if err := h.recordRevenue(ctx, "acme", amount, m.Start.AddDate(0, 0, 14)); err != nil {
			return err
		}
		if _, err := h.Service.CreatePayout(ctx, "acme", m, scenarioActor); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadMinimumGuaranteeScenario(ctx context.Context) error {
	months := h.recentMonths(2)
	start := months[0].Start.Format(split.DateLayout)
	if err := h.registerRuleJSON(ctx, settlement.MinimumGuaranteeRuleJSON("rule-globex", "globex", 5_000_000, 30, start)); err != nil {
		return err
	}

	// Busy month: 30% of 25M beats the floor. Slow month: the floor wins.
	for i, amount := range []split.Cents{25_000_000, 10_000_000} {
		if err := h.recordRevenue(ctx, "globex", amount, months[i].Start.AddDate(0, 0, 9)); err != nil {
			return err
		}
		if _, err := h.Service.CreatePayout(ctx, "globex", months[i], scenarioActor); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadAdjustedPayoutScenario(ctx context.Context) error {
	months := h.recentMonths(2)
	start := months[0].Start.Format(split.DateLayout)
	if err := h.registerRuleJSON(ctx, settlement.PercentageRuleJSON("rule-initech", "initech", 25, start)); err != nil {
		return err
	}

	// Older month: paid out
	if err := h.recordRevenue(ctx, "initech", 8_000_000, months[0].Start.AddDate(0, 0, 3)); err != nil {
		return err
	}
	paid, err := h.Service.CreatePayout(ctx, "initech", months[0], scenarioActor)
	if err != nil {
		return err
	}
	if _, err := h.Service.StartProcessing(ctx, paid.ID, scenarioActor); err != nil {
		return err
	}
	if _, err := h.Service.Complete(ctx, paid.ID, scenarioActor); err != nil {
		return err
	}

	// Latest month: pending with corrections
	if err := h.recordRevenue(ctx, "initech", 20_000_000, months[1].Start.AddDate(0, 0, 20)); err != nil {
		return err
	}
	pending, err := h.Service.CreatePayout(ctx, "initech", months[1], scenarioActor)
	if err != nil {
		return err
	}
	corrections := []settlement.AdjustmentInput{
		{Type: split.AdjustIncrease, Amount: 500_000, Reason: "Late invoice INV-2291 missed by the import", ApprovedBy: "finance-lead"},
		{Type: split.AdjustDecrease, Amount: 125_000, Reason: "Customer refund on order 88123", ApprovedBy: "finance-lead"},
	}
	for _, c := range corrections {
		if _, err := h.Service.AddAdjustment(ctx, pending.ID, c, scenarioActor); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadRuleChangeScenario(ctx context.Context) error {
	months := h.recentMonths(4)
	promoEnd := months[1].End.Format(split.DateLayout)
	if err := h.registerRuleJSON(ctx, settlement.FixedTermRuleJSON("rule-umbrella-promo", "umbrella", 20,
		months[0].Start.Format(split.DateLayout), promoEnd)); err != nil {
		return err
	}
	if err := h.registerRuleJSON(ctx, settlement.PercentageRuleJSON("rule-umbrella", "umbrella", 35,
		months[2].Start.Format(split.DateLayout))); err != nil {
		return err
	}

	for _, m := range months {
		if err := h.recordRevenue(ctx, "umbrella", 6_000_000, m.Start.AddDate(0, 0, 1)); err != nil {
			return err
		}
		if _, err := h.Service.CreatePayout(ctx, "umbrella", m, scenarioActor); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// recentMonths returns the n months before the current one, oldest first.
func (h *Handler) recentMonths(n int) []split.Period {
	current := split.PeriodFor(split.PeriodMonthly, h.Service.Now())
	months := make([]split.Period, n)
	for i := 0; i < n; i++ {
		months[i] = split.PeriodFor(split.PeriodMonthly, current.Start.AddDate(0, -(n-i), 0))
	}
	return months
}

func (h *Handler) registerRuleJSON(ctx context.Context, ruleJSON string) error {
	rule, err := h.RuleFactory.ParseRule(ruleJSON)
	if err != nil {
		return err
	}
	_, err = h.Service.RegisterRule(ctx, rule, scenarioActor)
	return err
}

func (h *Handler) recordRevenue(ctx context.Context, partnerID split.PartnerID, amount split.Cents, at time.Time) error {
	_, err := h.Service.RecordRevenue(ctx, split.RevenueEntry{
		PartnerID:  partnerID,
		Amount:     amount,
		OccurredAt: at,
		Reference:  "scn-" + uuid.NewString(),
	}, scenarioActor)
	return err
}
