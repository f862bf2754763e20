/*
calculator.go - Share computation and adjustment replay

PURPOSE:
  The only arithmetic in the system lives here. Both functions are pure:
  no I/O, no clock, no shared state. Re-running them with the same inputs
  always yields the same result, so payouts are recomputed from their
  inputs instead of being patched in place.

ROUNDING:
  Percentages are applied with exact decimal arithmetic and rounded DOWN
  to the cent. A partner is never paid a fraction of a cent they did not earn.

ADJUSTMENT ORDER:
  Adjustments replay in the order given (Seq order for stored payouts):

    base 5,000,000
    increase 500,000  -> 5,500,000
    override 4,000,000 -> 4,000,000   (everything before is discarded)
    decrease 250,000  -> 3,750,000

  The running total may never go below zero.
*/
package split

// ComputeShare derives the partner's share of revenue under the given terms.
func ComputeShare(revenue Cents, terms Terms) (Cents, error) {
	b, err := Breakdown(revenue, terms)
	if err != nil {
		return 0, err
	}
	return b.ActualShare, nil
}

// Breakdown is ComputeShare with the proportional share and the floor exposed.
func Breakdown(revenue Cents, terms Terms) (PartnerShare, error) {
	if revenue.IsNegative() {
		return PartnerShare{}, &ValidationError{Field: "revenue", Value: revenue.String(), Reason: "must not be negative"}
	}
	if terms == nil {
		return PartnerShare{}, &ValidationError{Field: "type", Reason: "rule has no terms"}
	}
	if err := terms.Validate(); err != nil {
		return PartnerShare{}, err
	}
	return terms.breakdown(revenue), nil
}

// ApplyAdjustments replays adjustments over base in order.
func ApplyAdjustments(base Cents, adjustments []Adjustment) (Cents, error) {
	if base.IsNegative() {
		return 0, &ValidationError{Field: "base_share", Value: base.String(), Reason: "must not be negative"}
	}
	total := base
	for i, a := range adjustments {
		if err := a.checkValue(); err != nil {
			return 0, err
		}
		next, err := a.apply(total)
		if err != nil {
			return 0, err
		}
		total = next
		if total.IsNegative() {
			return 0, &NegativeShareError{Index: i, Total: total}
		}
	}
	return total, nil
}

// Settle returns the {base, delta, final} record used for audit display.
func Settle(base Cents, adjustments []Adjustment) (Settlement, error) {
	final, err := ApplyAdjustments(base, adjustments)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{
		BaseShare:       base,
		AdjustmentDelta: final - base,
		FinalShare:      final,
	}, nil
}
