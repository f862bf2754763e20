/*
payout.go - Payout and its status machine

LIFECYCLE:

	pending ──► processing ──► completed
	   │             └───────► failed
	   └──► cancelled

  Terminal: completed, failed, cancelled.
  Adjustments may only be appended while pending.

VERSIONING:
  Version increases by one on every persisted change. Stores accept an
  update only if the caller's expected version matches, so "approve" and
  "adjust" on the same payout can never both win against the same read.
*/
package split

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutCancelled  PayoutStatus = "cancelled"
)

var transitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutProcessing, PayoutCancelled},
	PayoutProcessing: {PayoutCompleted, PayoutFailed},
}

// ParsePayoutStatus validates a status string.
func ParsePayoutStatus(s string) (PayoutStatus, error) {
	switch st := PayoutStatus(s); st {
	case PayoutPending, PayoutProcessing, PayoutCompleted, PayoutFailed, PayoutCancelled:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Value: s, Reason: "unknown payout status"}
}

// IsTerminal returns true for completed, failed and cancelled.
func (s PayoutStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is an edge of the status machine.
func CanTransition(from, to PayoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payout is a scheduled disbursement of a partner's share for a period.
// Amount is always ApplyAdjustments(BaseAmount, Adjustments).
type Payout struct {
	ID            PayoutID
	PartnerID     PartnerID
	RuleID        RuleID
	Period        Period
	Revenue       Cents
	BaseAmount    Cents
	Amount        Cents
	Currency      string
	Status        PayoutStatus
	Adjustments   []Adjustment
	FailureReason string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a copy that shares no slices with p.
func (p Payout) Clone() Payout {
	if p.Adjustments != nil {
		p.Adjustments = append([]Adjustment(nil), p.Adjustments...)
	}
	return p
}

// Settlement recomputes the audit breakdown from the payout's inputs.
func (p Payout) Settlement() (Settlement, error) {
	return Settle(p.BaseAmount, p.Adjustments)
}

// AppendAdjustment adds adj as the next adjustment and recomputes Amount.
// On error the payout is left unchanged.
func (p *Payout) AppendAdjustment(adj Adjustment, at time.Time) error {
	if p.Status != PayoutPending {
		return &InvalidStateError{PayoutID: p.ID, Status: p.Status, Op: "adjust"}
	}
	adj.PayoutID = p.ID
	adj.Seq = len(p.Adjustments) + 1
	adj.CreatedAt = at
	if err := adj.Validate(); err != nil {
		return err
	}

	next := append(append([]Adjustment(nil), p.Adjustments...), adj)
	amount, err := ApplyAdjustments(p.BaseAmount, next)
	if err != nil {
		return err
	}
	p.Adjustments = next
	p.Amount = amount
	p.UpdatedAt = at
	return nil
}

// Transition moves the payout to status to. reason is kept as the failure
// reason when to is failed or cancelled.
func (p *Payout) Transition(to PayoutStatus, reason string, at time.Time) error {
	if !CanTransition(p.Status, to) {
		return &InvalidStateError{PayoutID: p.ID, Status: p.Status, Op: "move to " + string(to)}
	}
	p.Status = to
	if to == PayoutFailed || to == PayoutCancelled {
		p.FailureReason = reason
	}
	p.UpdatedAt = at
	return nil
}
