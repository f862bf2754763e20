package split

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SPLIT TERMS - tagged variant
// =============================================================================

// SplitType names the variant of a rule's terms.
type SplitType string

const (
	SplitPercentage       SplitType = "percentage"
	SplitMinimumGuarantee SplitType = "minimum_guarantee"
)

// Terms is the payload of a split rule. Exactly two implementations exist:
// Percentage and MinimumGuarantee. Each carries only the fields its type needs.
type Terms interface {
	Type() SplitType
	Validate() error

	// breakdown computes the share for a non-negative revenue.
	breakdown(revenue Cents) PartnerShare
}

// Percentage gives the partner Rate percent of revenue, rounded down to the cent.
type Percentage struct {
	Rate decimal.Decimal
}

func (Percentage) Type() SplitType { return SplitPercentage }

func (p Percentage) Validate() error {
	return validateRate("percentage", p.Rate)
}

func (p Percentage) breakdown(revenue Cents) PartnerShare {
	share := percentOf(revenue, p.Rate)
	return PartnerShare{RevenueShare: share, ActualShare: share}
}

// MinimumGuarantee pays the larger of Baseline percent of revenue and Floor.
// A zero Baseline makes the rule a flat floor.
type MinimumGuarantee struct {
	Floor    Cents
	Baseline decimal.Decimal
}

func (MinimumGuarantee) Type() SplitType { return SplitMinimumGuarantee }

func (m MinimumGuarantee) Validate() error {
	if m.Floor.IsNegative() {
		return &ValidationError{Field: "minimum_amount", Value: m.Floor.String(), Reason: "must not be negative"}
	}
	return validateRate("baseline_percentage", m.Baseline)
}

func (m MinimumGuarantee) breakdown(revenue Cents) PartnerShare {
	share := percentOf(revenue, m.Baseline)
	return PartnerShare{
		RevenueShare:     share,
		MinimumGuarantee: m.Floor,
		ActualShare:      share.Max(m.Floor),
	}
}

var hundred = decimal.NewFromInt(100)

// MaxRateScale is the most fractional digits a rate may carry.
const MaxRateScale = 6

func validateRate(field string, rate decimal.Decimal) error {
	// Exponent is checked first: comparing, printing or flooring a rate
	// rescales it by 10^|exp|.
	exp := rate.Exponent()
	if exp < -MaxRateScale {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must have at most %d decimal places", MaxRateScale)}
	}
	if exp > 2 {
		return &ValidationError{Field: field, Reason: "must be within [0, 100]"}
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return &ValidationError{Field: field, Value: rate.String(), Reason: "must be within [0, 100]"}
	}
	return nil
}

// percentOf returns floor(revenue * rate / 100). Exact: the product of an
// integer and a finite decimal is finite, and /100 is a shift.
func percentOf(revenue Cents, rate decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(revenue)).Mul(rate).Shift(-2).Floor().IntPart())
}

// =============================================================================
// SPLIT RULE
// =============================================================================

type RuleStatus string

const (
	RuleActive   RuleStatus = "active"
	RuleInactive RuleStatus = "inactive"
)

// SplitRule binds terms to a partner for an effective window.
// EffectiveTo is inclusive; nil means open-ended.
type SplitRule struct {
	ID            RuleID
	PartnerID     PartnerID
	Terms         Terms
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Status        RuleStatus
	CreatedAt     time.Time
}

// Validate checks the terms and the window.
func (r SplitRule) Validate() error {
	if r.PartnerID == "" {
		return &ValidationError{Field: "partner_id", Reason: "required"}
	}
	if r.Terms == nil {
		return &ValidationError{Field: "type", Reason: "rule has no terms"}
	}
	if r.EffectiveFrom.IsZero() {
		return &ValidationError{Field: "effective_date", Reason: "required"}
	}
	if r.EffectiveTo != nil && DayOf(*r.EffectiveTo).Before(DayOf(r.EffectiveFrom)) {
		return &ValidationError{Field: "end_date", Value: r.EffectiveTo.Format(DateLayout), Reason: "before effective_date"}
	}
	switch r.Status {
	case RuleActive, RuleInactive:
	default:
		return &ValidationError{Field: "status", Value: string(r.Status), Reason: "must be active or inactive"}
	}
	return r.Terms.Validate()
}

// Covers reports whether the day of t falls inside the rule's window.
func (r SplitRule) Covers(t time.Time) bool {
	day := DayOf(t)
	if day.Before(DayOf(r.EffectiveFrom)) {
		return false
	}
	return r.EffectiveTo == nil || !day.After(DayOf(*r.EffectiveTo))
}

// IsActiveAt reports whether the rule is active and covers t.
func (r SplitRule) IsActiveAt(t time.Time) bool {
	return r.Status == RuleActive && r.Covers(t)
}

// Overlaps reports whether two rules' windows share at least one day.
func (r SplitRule) Overlaps(o SplitRule) bool {
	return r.window().Overlaps(o.window())
}

// CheckInsert rejects r if its ID is taken or, when r is active, its window
// overlaps another active rule of the partner. existing holds the partner's
// stored rules plus any rule stored under r.ID.
func (r SplitRule) CheckInsert(existing []SplitRule) error {
	for _, other := range existing {
		if other.ID == r.ID {
			return fmt.Errorf("rule %s: %w", r.ID, ErrDuplicateRule)
		}
	}
	if r.Status != RuleActive {
		return nil
	}
	for _, other := range existing {
		if other.PartnerID == r.PartnerID && other.Status == RuleActive && other.Overlaps(r) {
			return fmt.Errorf("rule %s overlaps %s: %w", r.ID, other.ID, ErrOverlappingRule)
		}
	}
	return nil
}

func (r SplitRule) window() Period {
	end := OpenEnded
	if r.EffectiveTo != nil {
		end = DayOf(*r.EffectiveTo)
	}
	return Period{Start: DayOf(r.EffectiveFrom), End: end}
}

// Compute is ComputeShare for this rule's terms.
func (r SplitRule) Compute(revenue Cents) (Cents, error) {
	return ComputeShare(revenue, r.Terms)
}
