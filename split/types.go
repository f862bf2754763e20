/*
Package split provides the core revenue split engine.

PURPOSE:
  This package contains the types and algorithms that turn gross partner
  revenue into a payable share. It knows about split rules, manual
  adjustments and payouts, but nothing about HTTP or storage engines.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: Money in integer minor units. There is no float money anywhere.
  - Identifiers: Type-safe IDs for partners, rules, payouts, adjustments
  - RevenueEntry: Gross revenue attributed to a partner
  - PartnerShare / Settlement: Derived views, never stored on their own

DESIGN PRINCIPLES:
  1. Integer money: all amounts are Cents; rates use decimal.Decimal
  2. Determinism: the same inputs always produce the same share
  3. Immutability: adjustments are appended, never edited
  4. Auditability: every payout change leaves an AuditEntry

USAGE:
  rule := split.SplitRule{Terms: split.Percentage{Rate: decimal.NewFromInt(30)}}
  share, err := split.ComputeShare(15_000_000, rule.Terms)   // 4_500_000

SEE ALSO:
  - rule.go: Split rule variants
  - calculator.go: ComputeShare / ApplyAdjustments
  - payout.go: Payout status machine
  - store.go: Repository interfaces
*/
package split

import (
	"strconv"
	"time"

	"github.com/Rhymond/go-money"
)

// =============================================================================
// MONEY
// =============================================================================

// Cents is an amount of money in minor currency units.
type Cents int64

func (c Cents) IsNegative() bool { return c < 0 }
func (c Cents) Max(o Cents) Cents {
	if c > o {
		return c
	}
	return o
}

// String renders the raw integer value.
func (c Cents) String() string { return strconv.FormatInt(int64(c), 10) }

// Format renders the amount for humans in the given ISO currency,
// e.g. Cents(4500000).Format("USD") == "$45,000.00".
func (c Cents) Format(currency string) string {
	return money.New(int64(c), currency).Display()
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PartnerID string
type RuleID string
type PayoutID string
type AdjustmentID string

// =============================================================================
// REVENUE
// =============================================================================

// RevenueEntry is gross revenue attributed to one partner (an invoice subtotal,
// a settled order, ...). Reference is unique and makes intake idempotent.
type RevenueEntry struct {
	ID         string
	PartnerID  PartnerID
	Amount     Cents
	OccurredAt time.Time
	Reference  string
	CreatedAt  time.Time
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// PartnerShare is the computed split for one reporting period.
//
//	RevenueShare:     proportional share under the rule's rate
//	MinimumGuarantee: floor owed regardless of revenue (0 for percentage rules)
//	ActualShare:      what the partner is owed before adjustments
type PartnerShare struct {
	RevenueShare     Cents
	MinimumGuarantee Cents
	ActualShare      Cents
}

// GuaranteeApplied reports whether the floor beat the proportional share.
func (s PartnerShare) GuaranteeApplied() bool {
	return s.MinimumGuarantee > s.RevenueShare
}

// Settlement is the audit breakdown of a payout amount.
type Settlement struct {
	BaseShare       Cents
	AdjustmentDelta Cents
	FinalShare      Cents
}
