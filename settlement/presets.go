package settlement

import "fmt"

// =============================================================================
// PRESET RULE DEFINITIONS
// =============================================================================
//
// JSON rule definitions for the common partner agreements. Feed them to
// factory.RuleFactory.ParseRule.

// PercentageRuleJSON is a plain revenue share: rate percent of revenue.
func PercentageRuleJSON(id, partnerID string, rate float64, effective string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"partner_id": %q,
		"type": "percentage",
		"percentage": %g,
		"effective_date": %q,
		"status": "active"
	}`, id, partnerID, rate, effective)
}

// MinimumGuaranteeRuleJSON pays max(baseline percent of revenue, minimum).
// minimum is in cents.
func MinimumGuaranteeRuleJSON(id, partnerID string, minimum int64, baseline float64, effective string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"partner_id": %q,
		"type": "minimum_guarantee",
		"minimum_amount": %d,
		"baseline_percentage": %g,
		"effective_date": %q,
		"status": "active"
	}`, id, partnerID, minimum, baseline, effective)
}

// FixedTermRuleJSON is a percentage rule with an end date (promotions, pilots).
func FixedTermRuleJSON(id, partnerID string, rate float64, effective, end string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"partner_id": %q,
		"type": "percentage",
		"percentage": %g,
		"effective_date": %q,
		"end_date": %q,
		"status": "active"
	}`, id, partnerID, rate, effective, end)
}
