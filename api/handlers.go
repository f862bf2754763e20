/*
handlers.go - HTTP API handlers for the revenue share engine

PURPOSE:
  Exposes the settlement service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Rules:
    GET    /api/partners/{id}/rules         List a partner's rules
    POST   /api/rules                       Register rule from JSON
    POST   /api/rules/{id}/deactivate       Deactivate a rule

  Revenue:
    POST   /api/partners/{id}/revenue       Record revenue
    GET    /api/partners/{id}/share         Share for ?from=&to=

  Payouts:
    POST   /api/partners/{id}/payouts       Create payout for a period
    GET    /api/payouts                     List (?status=&partner_id=)
    GET    /api/payouts/{id}                Payout with settlement breakdown
    POST   /api/payouts/{id}/adjustments    Append adjustment
    POST   /api/payouts/{id}/transition     Change status
    POST   /api/payouts/process             Run the payout scheduler now

  Other:
    GET    /api/audit                       Audit trail
    POST   /api/calculate                   Stateless share calculation

ACTOR:
  The X-Actor-ID header names the operator for the audit log. Requests
  without it are recorded as "anonymous".

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Rule, payout or partner not found
  - 409: Invalid state, overlapping rule, duplicate, concurrent modification
  - 422: Adjustments would make the share negative
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/go-chi/chi/v5"

	"github.com/warp/revenue-share/factory"
	"github.com/warp/revenue-share/settlement"
	"github.com/warp/revenue-share/split"
)

// ActorHeader carries the operator ID for audit entries.
const ActorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service     *settlement.Service
	RuleFactory *factory.RuleFactory

	// Scheduler is optional; POST /api/payouts/process needs it.
	Scheduler *PayoutScheduler

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the settlement service.
func NewHandler(svc *settlement.Service) *Handler {
	return &Handler{
		Service:     svc,
		RuleFactory: factory.NewRuleFactory(),
	}
}

func actorFrom(r *http.Request) settlement.Actor {
	id := strings.TrimSpace(r.Header.Get(ActorHeader))
	if id == "" {
		id = "anonymous"
	}
	return settlement.Actor{ID: id, Type: "operator"}
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns a partner's rules.
// GET /api/partners/{id}/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	partnerID := split.PartnerID(chi.URLParam(r, "id"))

	rules, err := h.Service.Rules(r.Context(), partnerID)
	if err != nil {
		writeServiceError(w, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = h.toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRule registers a rule from its JSON definition.
// POST /api/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req factory.RuleJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.RuleFactory.FromJSON(req)
	if err != nil {
		writeServiceError(w, "Invalid rule", err)
		return
	}

	rule, err = h.Service.RegisterRule(r.Context(), rule, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to register rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toRuleDTO(rule))
}

// DeactivateRule marks a rule inactive.
// POST /api/rules/{id}/deactivate
func (h *Handler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	id := split.RuleID(chi.URLParam(r, "id"))

	rule, err := h.Service.DeactivateRule(r.Context(), id, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to deactivate rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toRuleDTO(rule))
}

func (h *Handler) toRuleDTO(rule split.SplitRule) RuleDTO {
	dto := RuleDTO{RuleJSON: h.RuleFactory.ToJSON(rule)}
	if !rule.CreatedAt.IsZero() {
		dto.CreatedAt = rule.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// REVENUE HANDLERS
// =============================================================================

// RecordRevenue records gross revenue for a partner.
// POST /api/partners/{id}/revenue
func (h *Handler) RecordRevenue(w http.ResponseWriter, r *http.Request) {
	partnerID := split.PartnerID(chi.URLParam(r, "id"))

	var req RecordRevenueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry := split.RevenueEntry{
		PartnerID: partnerID,
		Amount:    split.Cents(req.Amount),
		Reference: req.Reference,
	}
	if req.OccurredAt != "" {
		at, err := parseInstant(req.OccurredAt)
		if err != nil {
			writeServiceError(w, "Invalid occurred_at", err)
			return
		}
		entry.OccurredAt = at
	}

	entry, err := h.Service.RecordRevenue(r.Context(), entry, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to record revenue", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRevenueDTO(entry, h.Service.Currency))
}

// GetShare computes a partner's share for a period.
// GET /api/partners/{id}/share?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetShare(w http.ResponseWriter, r *http.Request) {
	partnerID := split.PartnerID(chi.URLParam(r, "id"))

	period, err := periodFromQuery(r, h.Service.Now())
	if err != nil {
		writeServiceError(w, "Invalid period", err)
		return
	}

	report, err := h.Service.PartnerShare(r.Context(), partnerID, period)
	if err != nil {
		writeServiceError(w, "Failed to compute share", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareReportDTO(report, h.Service.Currency))
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// CreatePayout schedules a pending payout of the partner's share.
// POST /api/partners/{id}/payouts
func (h *Handler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	partnerID := split.PartnerID(chi.URLParam(r, "id"))

	var req CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := req.period()
	if err != nil {
		writeServiceError(w, "Invalid period", err)
		return
	}

	p, err := h.Service.CreatePayout(r.Context(), partnerID, period, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to create payout", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutDTO(p))
}

// ListPayouts lists payouts, optionally filtered.
// GET /api/payouts?status=pending,processing&partner_id=acme
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	filter := split.PayoutFilter{PartnerID: split.PartnerID(r.URL.Query().Get("partner_id"))}
	if s := r.URL.Query().Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			st, err := split.ParsePayoutStatus(strings.TrimSpace(part))
			if err != nil {
				writeServiceError(w, "Invalid status filter", err)
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	payouts, err := h.Service.ListPayouts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "Failed to list payouts", err)
		return
	}

	dtos := make([]PayoutDTO, len(payouts))
	for i, p := range payouts {
		dtos[i] = toPayoutDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayout returns a payout with its settlement breakdown.
// GET /api/payouts/{id}
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id := split.PayoutID(chi.URLParam(r, "id"))

	p, err := h.Service.GetPayout(r.Context(), id)
	if err != nil {
		writeServiceError(w, "Failed to get payout", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(p))
}

// AddAdjustment appends an adjustment to a pending payout.
// POST /api/payouts/{id}/adjustments
func (h *Handler) AddAdjustment(w http.ResponseWriter, r *http.Request) {
	id := split.PayoutID(chi.URLParam(r, "id"))

	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Service.AddAdjustment(r.Context(), id, settlement.AdjustmentInput{
		Type:       split.AdjustmentType(req.Type),
		Amount:     split.Cents(req.Amount),
		Reason:     req.Reason,
		ApprovedBy: req.ApprovedBy,
	}, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to add adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutDTO(p))
}

// TransitionPayout changes a payout's status.
// POST /api/payouts/{id}/transition
func (h *Handler) TransitionPayout(w http.ResponseWriter, r *http.Request) {
	id := split.PayoutID(chi.URLParam(r, "id"))

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	to, err := split.ParsePayoutStatus(req.To)
	if err != nil {
		writeServiceError(w, "Invalid target status", err)
		return
	}

	p, err := h.Service.Transition(r.Context(), id, to, req.Reason, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to change payout status", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(p))
}

// ProcessPayouts runs the payout scheduler once.
// POST /api/payouts/process
func (h *Handler) ProcessPayouts(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Payout scheduler not configured", nil)
		return
	}
	promoted := h.Scheduler.RunNow(r.Context())
	writeJSON(w, http.StatusOK, ProcessResponse{
		Promoted: promoted,
		NextRun:  h.Scheduler.GetNextRunTime().Format(time.RFC3339),
	})
}

// =============================================================================
// AUDIT & CALCULATION
// =============================================================================

// GetAudit returns the audit trail.
// GET /api/audit?payout_id=&partner_id=&action=
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := split.AuditFilter{
		PartnerID: split.PartnerID(q.Get("partner_id")),
		PayoutID:  split.PayoutID(q.Get("payout_id")),
	}
	if a := q.Get("action"); a != "" {
		filter.Actions = []split.AuditAction{split.AuditAction(a)}
	}

	entries, err := h.Service.AuditTrail(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Calculate computes a share and replays adjustments without persisting.
// POST /api/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	currency := h.Service.Currency
	if req.Currency != "" {
		currency = strings.ToUpper(req.Currency)
		if money.GetCurrency(currency) == nil {
			writeServiceError(w, "Invalid currency", &split.ValidationError{Field: "currency", Value: req.Currency, Reason: "unknown ISO 4217 code"})
			return
		}
	}

	terms, err := h.RuleFactory.TermsFromJSON(req.Rule)
	if err != nil {
		writeServiceError(w, "Invalid rule", err)
		return
	}
	share, err := split.Breakdown(split.Cents(req.Revenue), terms)
	if err != nil {
		writeServiceError(w, "Failed to compute share", err)
		return
	}

	adjs := make([]split.Adjustment, len(req.Adjustments))
	for i, a := range req.Adjustments {
		adjs[i] = split.Adjustment{
			Type:   split.AdjustmentType(a.Type),
			Amount: split.Cents(a.Amount),
			Reason: a.Reason,
			Seq:    i + 1,
		}
	}
	settled, err := split.Settle(share.ActualShare, adjs)
	if err != nil {
		writeServiceError(w, "Failed to apply adjustments", err)
		return
	}

	writeJSON(w, http.StatusOK, CalculateResponse{
		Revenue:    toMoney(split.Cents(req.Revenue), currency),
		Share:      toPartnerShareDTO(share, currency),
		Settlement: toSettlementDTO(settled, currency),
	})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

// parseInstant accepts a YYYY-MM-DD day or an RFC3339 timestamp.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return split.ParseDay(s)
}

// periodFromQuery reads ?from&to, defaulting to the month containing now.
func periodFromQuery(r *http.Request, now time.Time) (split.Period, error) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" && to == "" {
		return split.PeriodFor(split.PeriodMonthly, now), nil
	}
	start, err := split.ParseDay(from)
	if err != nil {
		return split.Period{}, err
	}
	end, err := split.ParseDay(to)
	if err != nil {
		return split.Period{}, err
	}
	return split.NewPeriod(start, end)
}

func (req CreatePayoutRequest) period() (split.Period, error) {
	if req.PeriodStart != "" || req.PeriodEnd != "" {
		start, err := split.ParseDay(req.PeriodStart)
		if err != nil {
			return split.Period{}, err
		}
		end, err := split.ParseDay(req.PeriodEnd)
		if err != nil {
			return split.Period{}, err
		}
		return split.NewPeriod(start, end)
	}

	day, err := split.ParseDay(req.Date)
	if err != nil {
		return split.Period{}, err
	}
	pt := split.PeriodType(req.PeriodType)
	switch pt {
	case "":
		pt = split.PeriodMonthly
	case split.PeriodMonthly, split.PeriodQuarterly, split.PeriodYearly:
	default:
		return split.Period{}, &split.ValidationError{Field: "period_type", Value: req.PeriodType, Reason: "must be monthly, quarterly or yearly"}
	}
	return split.PeriodFor(pt, day), nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps split errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	status, code := classify(err)
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, split.ErrNegativeShare):
		return http.StatusUnprocessableEntity, "negative_share"
	case split.IsClientError(err):
		return http.StatusBadRequest, "validation"
	case split.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, split.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, split.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case split.IsConflict(err):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
