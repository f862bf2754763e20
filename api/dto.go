/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the split
  engine's types from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Every amount is a MoneyDTO: integer cents plus a display string
  formatted for the payout currency ("$45,000.00"). Clients must do
  arithmetic on cents only.

VALIDATION:
  Validation is done in handlers and the split engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: RuleJSON type
*/
package api

import (
	"time"

	"github.com/warp/revenue-share/factory"
	"github.com/warp/revenue-share/settlement"
	"github.com/warp/revenue-share/split"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// MoneyDTO is an amount in minor units with a formatted display string.
type MoneyDTO struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// PeriodDTO is an inclusive day range.
type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RuleDTO represents a split rule in API responses.
type RuleDTO struct {
	factory.RuleJSON
	CreatedAt string `json:"created_at,omitempty"`
}

// RecordRevenueRequest records gross revenue for a partner.
type RecordRevenueRequest struct {
	Amount     int64  `json:"amount"`
	OccurredAt string `json:"occurred_at"` // YYYY-MM-DD or RFC3339, default now
	Reference  string `json:"reference"`
}

// RevenueDTO represents a recorded revenue entry.
type RevenueDTO struct {
	ID         string   `json:"id"`
	PartnerID  string   `json:"partner_id"`
	Amount     MoneyDTO `json:"amount"`
	OccurredAt string   `json:"occurred_at"`
	Reference  string   `json:"reference,omitempty"`
}

// PartnerShareDTO is the share breakdown.
type PartnerShareDTO struct {
	RevenueShare     MoneyDTO `json:"revenue_share"`
	MinimumGuarantee MoneyDTO `json:"minimum_guarantee"`
	ActualShare      MoneyDTO `json:"actual_share"`
	GuaranteeApplied bool     `json:"guarantee_applied"`
}

// ShareReportDTO is a partner's share for one period.
type ShareReportDTO struct {
	PartnerID string          `json:"partner_id"`
	Period    PeriodDTO       `json:"period"`
	RuleID    string          `json:"rule_id"`
	Revenue   MoneyDTO        `json:"revenue"`
	Share     PartnerShareDTO `json:"share"`
}

// CreatePayoutRequest selects the period either by explicit days or by a
// cadence plus any date inside the period.
type CreatePayoutRequest struct {
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
	PeriodType  string `json:"period_type,omitempty"` // monthly, quarterly, yearly
	Date        string `json:"date,omitempty"`
}

// AdjustmentRequest is an operator's correction on a pending payout.
type AdjustmentRequest struct {
	Type       string `json:"type"`
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
	ApprovedBy string `json:"approved_by,omitempty"`
}

// AdjustmentDTO represents a stored adjustment.
type AdjustmentDTO struct {
	ID         string   `json:"id"`
	Seq        int      `json:"seq"`
	Type       string   `json:"type"`
	Amount     MoneyDTO `json:"amount"`
	Reason     string   `json:"reason"`
	ApprovedBy string   `json:"approved_by,omitempty"`
	CreatedBy  string   `json:"created_by,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// SettlementDTO is the {base, delta, final} record of a payout.
type SettlementDTO struct {
	BaseShare       MoneyDTO `json:"base_share"`
	AdjustmentDelta MoneyDTO `json:"adjustment_delta"`
	FinalShare      MoneyDTO `json:"final_share"`
}

// PayoutDTO represents a payout in API responses.
type PayoutDTO struct {
	ID            string          `json:"id"`
	PartnerID     string          `json:"partner_id"`
	RuleID        string          `json:"rule_id"`
	Period        PeriodDTO       `json:"period"`
	Revenue       MoneyDTO        `json:"revenue"`
	BaseAmount    MoneyDTO        `json:"base_amount"`
	Amount        MoneyDTO        `json:"amount"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Version       int64           `json:"version"`
	Adjustments   []AdjustmentDTO `json:"adjustments"`
	Settlement    *SettlementDTO  `json:"settlement,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// ProcessResponse reports a manual scheduler run.
type ProcessResponse struct {
	Promoted int    `json:"promoted"`
	NextRun  string `json:"next_run"`
}

// TransitionRequest moves a payout through its lifecycle.
type TransitionRequest struct {
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// AuditEntryDTO represents one audit record.
type AuditEntryDTO struct {
	ID        string            `json:"id"`
	At        string            `json:"at"`
	ActorID   string            `json:"actor_id"`
	Action    string            `json:"action"`
	PartnerID string            `json:"partner_id,omitempty"`
	PayoutID  string            `json:"payout_id,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// CalculateRequest is a stateless share + adjustment replay.
type CalculateRequest struct {
	Revenue     int64               `json:"revenue"`
	Rule        factory.RuleJSON    `json:"rule"`
	Adjustments []AdjustmentRequest `json:"adjustments,omitempty"`
	Currency    string              `json:"currency,omitempty"`
}

// CalculateResponse is the result of CalculateRequest.
type CalculateResponse struct {
	Revenue    MoneyDTO        `json:"revenue"`
	Share      PartnerShareDTO `json:"share"`
	Settlement SettlementDTO   `json:"settlement"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMoney(c split.Cents, currency string) MoneyDTO {
	return MoneyDTO{Cents: int64(c), Currency: currency, Display: c.Format(currency)}
}

func toPeriodDTO(p split.Period) PeriodDTO {
	return PeriodDTO{Start: p.Start.Format(split.DateLayout), End: p.End.Format(split.DateLayout)}
}

func toPartnerShareDTO(s split.PartnerShare, currency string) PartnerShareDTO {
	return PartnerShareDTO{
		RevenueShare:     toMoney(s.RevenueShare, currency),
		MinimumGuarantee: toMoney(s.MinimumGuarantee, currency),
		ActualShare:      toMoney(s.ActualShare, currency),
		GuaranteeApplied: s.GuaranteeApplied(),
	}
}

func toSettlementDTO(s split.Settlement, currency string) SettlementDTO {
	return SettlementDTO{
		BaseShare:       toMoney(s.BaseShare, currency),
		AdjustmentDelta: toMoney(s.AdjustmentDelta, currency),
		FinalShare:      toMoney(s.FinalShare, currency),
	}
}

func toShareReportDTO(r settlement.ShareReport, currency string) ShareReportDTO {
	return ShareReportDTO{
		PartnerID: string(r.PartnerID),
		Period:    toPeriodDTO(r.Period),
		RuleID:    string(r.Rule.ID),
		Revenue:   toMoney(r.Revenue, currency),
		Share:     toPartnerShareDTO(r.Share, currency),
	}
}

func toRevenueDTO(e split.RevenueEntry, currency string) RevenueDTO {
	return RevenueDTO{
		ID:         e.ID,
		PartnerID:  string(e.PartnerID),
		Amount:     toMoney(e.Amount, currency),
		OccurredAt: e.OccurredAt.Format(time.RFC3339),
		Reference:  e.Reference,
	}
}

func toPayoutDTO(p split.Payout) PayoutDTO {
	dto := PayoutDTO{
		ID:            string(p.ID),
		PartnerID:     string(p.PartnerID),
		RuleID:        string(p.RuleID),
		Period:        toPeriodDTO(p.Period),
		Revenue:       toMoney(p.Revenue, p.Currency),
		BaseAmount:    toMoney(p.BaseAmount, p.Currency),
		Amount:        toMoney(p.Amount, p.Currency),
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		Version:       p.Version,
		Adjustments:   make([]AdjustmentDTO, len(p.Adjustments)),
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
	for i, a := range p.Adjustments {
		dto.Adjustments[i] = AdjustmentDTO{
			ID:         string(a.ID),
			Seq:        a.Seq,
			Type:       string(a.Type),
			Amount:     toMoney(a.Amount, p.Currency),
			Reason:     a.Reason,
			ApprovedBy: a.ApprovedBy,
			CreatedBy:  a.CreatedBy,
			CreatedAt:  a.CreatedAt.Format(time.RFC3339),
		}
	}
	if s, err := p.Settlement(); err == nil {
		sd := toSettlementDTO(s, p.Currency)
		dto.Settlement = &sd
	}
	return dto
}

func toAuditDTO(e split.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		At:        e.At.Format(time.RFC3339),
		ActorID:   e.ActorID,
		Action:    string(e.Action),
		PartnerID: string(e.PartnerID),
		PayoutID:  string(e.PayoutID),
		Payload:   e.Payload,
	}
}
