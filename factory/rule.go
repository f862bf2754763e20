/*
Package factory provides JSON to Go split rule conversion.

PURPOSE:
  Converts JSON rule definitions into split.SplitRule values and back.
  Partner managers configure agreements as JSON (admin UI, database
  column, fixtures); the factory turns the loose shape into the tagged
  split.Terms variant so no code downstream has to guess which optional
  field is meaningful.

JSON SCHEMA:
  {
    "id": "rule-acme-2025",
    "partner_id": "acme",
    "type": "percentage",             // or "minimum_guarantee"
    "percentage": 30,                 // percentage only, [0, 100]
    "minimum_amount": 5000000,        // minimum_guarantee only, cents
    "baseline_percentage": 30,        // minimum_guarantee only, optional
    "effective_date": "2025-01-01",
    "end_date": "2025-12-31",         // optional, inclusive
    "status": "active"                // default active
  }

  Fields that do not belong to the declared type are rejected rather than
  ignored.

USAGE:
  f := factory.NewRuleFactory()
  rule, err := f.ParseRule(settlement.PercentageRuleJSON("r1", "acme", 30, "2025-01-01"))

SEE ALSO:
  - split/rule.go: SplitRule and Terms
  - settlement/presets.go: Preset JSON definitions
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/revenue-share/split"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a split rule.
type RuleJSON struct {
	ID                 string           `json:"id,omitempty"`
	PartnerID          string           `json:"partner_id"`
	Type               string           `json:"type"`
	Percentage         *decimal.Decimal `json:"percentage,omitempty"`
	MinimumAmount      *int64           `json:"minimum_amount,omitempty"`
	BaselinePercentage *decimal.Decimal `json:"baseline_percentage,omitempty"`
	EffectiveDate      string           `json:"effective_date"`
	EndDate            *string          `json:"end_date,omitempty"`
	Status             string           `json:"status,omitempty"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to Go structs.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses a JSON string into a SplitRule.
func (f *RuleFactory) ParseRule(jsonStr string) (split.SplitRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return split.SplitRule{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RuleJSON to a validated SplitRule.
func (f *RuleFactory) FromJSON(rj RuleJSON) (split.SplitRule, error) {
	terms, err := f.TermsFromJSON(rj)
	if err != nil {
		return split.SplitRule{}, err
	}

	effective, err := split.ParseDay(rj.EffectiveDate)
	if err != nil {
		return split.SplitRule{}, &split.ValidationError{Field: "effective_date", Value: rj.EffectiveDate, Reason: "use YYYY-MM-DD"}
	}

	rule := split.SplitRule{
		ID:            split.RuleID(rj.ID),
		PartnerID:     split.PartnerID(rj.PartnerID),
		Terms:         terms,
		EffectiveFrom: effective,
		Status:        parseStatus(rj.Status),
	}
	if rj.EndDate != nil && *rj.EndDate != "" {
		end, err := split.ParseDay(*rj.EndDate)
		if err != nil {
			return split.SplitRule{}, &split.ValidationError{Field: "end_date", Value: *rj.EndDate, Reason: "use YYYY-MM-DD"}
		}
		rule.EffectiveTo = &end
	}

	if err := rule.Validate(); err != nil {
		return split.SplitRule{}, err
	}
	return rule, nil
}

// ToJSON converts a SplitRule to RuleJSON.
func (f *RuleFactory) ToJSON(rule split.SplitRule) RuleJSON {
	rj := RuleJSON{
		ID:            string(rule.ID),
		PartnerID:     string(rule.PartnerID),
		EffectiveDate: rule.EffectiveFrom.Format(split.DateLayout),
		Status:        string(rule.Status),
	}
	if rule.EffectiveTo != nil {
		end := rule.EffectiveTo.Format(split.DateLayout)
		rj.EndDate = &end
	}

	switch t := rule.Terms.(type) {
	case split.Percentage:
		rj.Type = string(split.SplitPercentage)
		rate := t.Rate
		rj.Percentage = &rate
	case split.MinimumGuarantee:
		rj.Type = string(split.SplitMinimumGuarantee)
		floor := int64(t.Floor)
		rj.MinimumAmount = &floor
		if !t.Baseline.IsZero() {
			baseline := t.Baseline
			rj.BaselinePercentage = &baseline
		}
	}
	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// TermsFromJSON converts only the terms fields of rj. Used for stateless
// calculations where no partner or effective date applies.
func (f *RuleFactory) TermsFromJSON(rj RuleJSON) (split.Terms, error) {
	switch split.SplitType(rj.Type) {
	case split.SplitPercentage:
		if rj.Percentage == nil {
			return nil, &split.ValidationError{Field: "percentage", Reason: "required for percentage rules"}
		}
		if rj.MinimumAmount != nil || rj.BaselinePercentage != nil {
			return nil, &split.ValidationError{Field: "minimum_amount", Reason: "not allowed on percentage rules"}
		}
		p := split.Percentage{Rate: *rj.Percentage}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil

	case split.SplitMinimumGuarantee:
		if rj.MinimumAmount == nil {
			return nil, &split.ValidationError{Field: "minimum_amount", Reason: "required for minimum_guarantee rules"}
		}
		if rj.Percentage != nil {
			return nil, &split.ValidationError{Field: "percentage", Reason: "use baseline_percentage on minimum_guarantee rules"}
		}
		mg := split.MinimumGuarantee{Floor: split.Cents(*rj.MinimumAmount)}
		if rj.BaselinePercentage != nil {
			mg.Baseline = *rj.BaselinePercentage
		}
		if err := mg.Validate(); err != nil {
			return nil, err
		}
		return mg, nil

	default:
		return nil, &split.ValidationError{Field: "type", Value: rj.Type, Reason: "must be percentage or minimum_guarantee"}
	}
}

func parseStatus(s string) split.RuleStatus {
	if s == "" {
		return split.RuleActive
	}
	return split.RuleStatus(s)
}
