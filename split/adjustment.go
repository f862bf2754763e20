package split

import (
	"math"
	"strings"
	"time"
)

// AdjustmentType is the kind of manual correction.
type AdjustmentType string

const (
	AdjustIncrease AdjustmentType = "increase" // total += amount
	AdjustDecrease AdjustmentType = "decrease" // total -= amount
	AdjustOverride AdjustmentType = "override" // total = amount, earlier effects discarded
)

// Adjustment is a manual correction on a pending payout.
// Immutable once created: corrections are new adjustments, not edits.
type Adjustment struct {
	ID         AdjustmentID
	PayoutID   PayoutID
	Type       AdjustmentType
	Amount     Cents
	Reason     string
	ApprovedBy string
	CreatedBy  string
	Seq        int // insertion order within the payout, starting at 1
	CreatedAt  time.Time
}

// Validate checks type, amount and reason.
func (a Adjustment) Validate() error {
	if err := a.checkValue(); err != nil {
		return err
	}
	if strings.TrimSpace(a.Reason) == "" {
		return &ValidationError{Field: "reason", Reason: "required for audit"}
	}
	return nil
}

// checkValue checks only what replay needs: a known type and a non-negative amount.
func (a Adjustment) checkValue() error {
	switch a.Type {
	case AdjustIncrease, AdjustDecrease, AdjustOverride:
	default:
		return &ValidationError{Field: "type", Value: string(a.Type), Reason: "must be increase, decrease or override"}
	}
	if a.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Value: a.Amount.String(), Reason: "must not be negative"}
	}
	return nil
}

// apply returns the running total after this adjustment. total and
// a.Amount are non-negative, so only an increase can overflow.
func (a Adjustment) apply(total Cents) (Cents, error) {
	switch a.Type {
	case AdjustIncrease:
		if a.Amount > Cents(math.MaxInt64)-total {
			return 0, &ValidationError{Field: "amount", Value: a.Amount.String(), Reason: "increase overflows the share"}
		}
		return total + a.Amount, nil
	case AdjustDecrease:
		return total - a.Amount, nil
	case AdjustOverride:
		return a.Amount, nil
	}
	return total, nil
}
