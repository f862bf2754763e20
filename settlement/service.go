/*
Package settlement is the revenue-share domain layer over the split engine.

PURPOSE:
  Wires split rules, revenue intake and payouts together through an
  injected split.Repository. There is no global state: every dependency
  (repository, clock, ID generator) is on the Service.

OPERATIONS:
  Rules:    RegisterRule, DeactivateRule, ActiveRule, Rules
  Revenue:  RecordRevenue, PartnerShare
  Payouts:  CreatePayout, AddAdjustment, Transition (+ helpers), PayoutBreakdown
  Audit:    AuditTrail

CONCURRENCY:
  Payout writes are read-modify-CAS. On ErrConcurrentModification the
  service re-reads and re-applies, up to MaxRetries times. A racing
  "start processing" and "adjust" therefore serialize: whichever lands
  second sees the other's result and either succeeds on top of it or is
  rejected with InvalidStateError.

SEE ALSO:
  - split/calculator.go: the arithmetic
  - split/store.go: repository contract
*/
package settlement

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/warp/revenue-share/split"
)

// DefaultMaxRetries bounds CAS retries on payout writes.
const DefaultMaxRetries = 3

// Actor identifies who performs an operation, for the audit log.
type Actor struct {
	ID   string
	Type string // "operator", "system", "admin"
}

// SystemActor is used by the scheduler.
var SystemActor = Actor{ID: "system", Type: "system"}

// Service implements the settlement operations.
type Service struct {
	Repo       split.Repository
	Currency   string
	MaxRetries int

	now   func() time.Time
	newID func() string
}

// NewService creates a service over repo using currency for new payouts.
func NewService(repo split.Repository, currency string) *Service {
	return &Service{
		Repo:       repo,
		Currency:   currency,
		MaxRetries: DefaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// WithClock replaces the clock (tests, scenario loading).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

// =============================================================================
// RULES
// =============================================================================

// RegisterRule validates and stores a new rule. A reused ID is rejected
// (ErrDuplicateRule), and an active rule may not overlap another active
// rule of the same partner (ErrOverlappingRule). The store enforces both.
func (s *Service) RegisterRule(ctx context.Context, rule split.SplitRule, actor Actor) (split.SplitRule, error) {
	if rule.ID == "" {
		rule.ID = split.RuleID(s.newID())
	}
	if rule.Status == "" {
		rule.Status = split.RuleActive
	}
	if err := rule.Validate(); err != nil {
		return split.SplitRule{}, err
	}
	rule.CreatedAt = s.now()
	if err := s.Repo.InsertRule(ctx, rule); err != nil {
		return split.SplitRule{}, fmt.Errorf("register rule: %w", err)
	}
	s.audit(ctx, actor, split.AuditRuleRegistered, rule.PartnerID, "", map[string]string{
		"rule_id": string(rule.ID),
		"type":    string(rule.Terms.Type()),
	})
	return rule, nil
}

// DeactivateRule marks a rule inactive. Shares already paid are untouched.
func (s *Service) DeactivateRule(ctx context.Context, id split.RuleID, actor Actor) (split.SplitRule, error) {
	rule, err := s.Repo.GetRule(ctx, id)
	if err != nil {
		return split.SplitRule{}, err
	}
	rule.Status = split.RuleInactive
	if err := s.Repo.SaveRule(ctx, rule); err != nil {
		return split.SplitRule{}, fmt.Errorf("save rule: %w", err)
	}
	s.audit(ctx, actor, split.AuditRuleDeactivated, rule.PartnerID, "", map[string]string{"rule_id": string(id)})
	return rule, nil
}

// Rules lists a partner's rules.
func (s *Service) Rules(ctx context.Context, partnerID split.PartnerID) ([]split.SplitRule, error) {
	return s.Repo.RulesByPartner(ctx, partnerID)
}

// ActiveRule returns the partner's active rule covering at.
func (s *Service) ActiveRule(ctx context.Context, partnerID split.PartnerID, at time.Time) (split.SplitRule, error) {
	rules, err := s.Repo.RulesByPartner(ctx, partnerID)
	if err != nil {
		return split.SplitRule{}, err
	}
	for _, r := range rules {
		if r.IsActiveAt(at) {
			return r, nil
		}
	}
	return split.SplitRule{}, fmt.Errorf("no active rule for %s on %s: %w",
		partnerID, at.Format(split.DateLayout), split.ErrRuleNotFound)
}

// =============================================================================
// REVENUE
// =============================================================================

// RecordRevenue appends a revenue entry. Reference makes it idempotent.
func (s *Service) RecordRevenue(ctx context.Context, entry split.RevenueEntry, actor Actor) (split.RevenueEntry, error) {
	if entry.PartnerID == "" {
		return split.RevenueEntry{}, &split.ValidationError{Field: "partner_id", Reason: "required"}
	}
	if entry.Amount.IsNegative() {
		return split.RevenueEntry{}, &split.ValidationError{Field: "amount", Value: entry.Amount.String(), Reason: "must not be negative"}
	}
	if entry.ID == "" {
		entry.ID = s.newID()
	}
	entry.CreatedAt = s.now()
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = entry.CreatedAt
	}
	if err := s.Repo.AppendRevenue(ctx, entry); err != nil {
		return split.RevenueEntry{}, err
	}
	s.audit(ctx, actor, split.AuditRevenueRecorded, entry.PartnerID, "", map[string]string{
		"amount":    entry.Amount.String(),
		"reference": entry.Reference,
	})
	return entry, nil
}

// ShareReport is the partner share for one period.
type ShareReport struct {
	PartnerID split.PartnerID
	Period    split.Period
	Rule      split.SplitRule
	Revenue   split.Cents
	Share     split.PartnerShare
}

// PartnerShare sums the partner's revenue in period and applies the rule
// effective on the period's last day.
func (s *Service) PartnerShare(ctx context.Context, partnerID split.PartnerID, period split.Period) (ShareReport, error) {
	rule, err := s.ActiveRule(ctx, partnerID, period.End)
	if err != nil {
		return ShareReport{}, err
	}
	entries, err := s.Repo.RevenueInPeriod(ctx, partnerID, period)
	if err != nil {
		return ShareReport{}, err
	}
	var revenue split.Cents
	for _, e := range entries {
		revenue += e.Amount
	}
	share, err := split.Breakdown(revenue, rule.Terms)
	if err != nil {
		return ShareReport{}, err
	}
	return ShareReport{
		PartnerID: partnerID,
		Period:    period,
		Rule:      rule,
		Revenue:   revenue,
		Share:     share,
	}, nil
}

// =============================================================================
// PAYOUTS
// =============================================================================

// CreatePayout schedules a pending payout of the partner's share for period.
// The store rejects a second live payout for the same period.
func (s *Service) CreatePayout(ctx context.Context, partnerID split.PartnerID, period split.Period, actor Actor) (split.Payout, error) {
	report, err := s.PartnerShare(ctx, partnerID, period)
	if err != nil {
		return split.Payout{}, err
	}
	now := s.now()
	p := split.Payout{
		ID:         split.PayoutID(s.newID()),
		PartnerID:  partnerID,
		RuleID:     report.Rule.ID,
		Period:     period,
		Revenue:    report.Revenue,
		BaseAmount: report.Share.ActualShare,
		Amount:     report.Share.ActualShare,
		Currency:   s.Currency,
		Status:     split.PayoutPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.CreatePayout(ctx, p); err != nil {
		return split.Payout{}, fmt.Errorf("create payout: %w", err)
	}
	p.Version = 1
	s.audit(ctx, actor, split.AuditPayoutCreated, partnerID, p.ID, map[string]string{
		"period":  period.String(),
		"revenue": report.Revenue.String(),
		"amount":  p.Amount.String(),
	})
	return p, nil
}

// GetPayout returns a payout by ID.
func (s *Service) GetPayout(ctx context.Context, id split.PayoutID) (split.Payout, error) {
	return s.Repo.GetPayout(ctx, id)
}

// ListPayouts returns payouts matching filter.
func (s *Service) ListPayouts(ctx context.Context, filter split.PayoutFilter) ([]split.Payout, error) {
	return s.Repo.ListPayouts(ctx, filter)
}

// AdjustmentInput is an operator's correction request.
type AdjustmentInput struct {
	Type       split.AdjustmentType
	Amount     split.Cents
	Reason     string
	ApprovedBy string
}

// AddAdjustment appends an adjustment to a pending payout.
func (s *Service) AddAdjustment(ctx context.Context, id split.PayoutID, in AdjustmentInput, actor Actor) (split.Payout, error) {
	adjID := split.AdjustmentID(s.newID())
	p, err := s.mutate(ctx, id, func(p *split.Payout) error {
		return p.AppendAdjustment(split.Adjustment{
			ID:         adjID,
			Type:       in.Type,
			Amount:     in.Amount,
			Reason:     in.Reason,
			ApprovedBy: in.ApprovedBy,
			CreatedBy:  actor.ID,
		}, s.now())
	})
	if err != nil {
		return split.Payout{}, err
	}
	s.audit(ctx, actor, split.AuditAdjustment, p.PartnerID, p.ID, map[string]string{
		"adjustment_id": string(adjID),
		"type":          string(in.Type),
		"amount":        in.Amount.String(),
		"reason":        in.Reason,
		"new_amount":    p.Amount.String(),
	})
	return p, nil
}

// Transition moves a payout to status to.
func (s *Service) Transition(ctx context.Context, id split.PayoutID, to split.PayoutStatus, reason string, actor Actor) (split.Payout, error) {
	var from split.PayoutStatus
	p, err := s.mutate(ctx, id, func(p *split.Payout) error {
		from = p.Status
		return p.Transition(to, reason, s.now())
	})
	if err != nil {
		return split.Payout{}, err
	}
	s.audit(ctx, actor, split.AuditStatusChanged, p.PartnerID, p.ID, map[string]string{
		"from":   string(from),
		"to":     string(to),
		"reason": reason,
	})
	return p, nil
}

func (s *Service) StartProcessing(ctx context.Context, id split.PayoutID, actor Actor) (split.Payout, error) {
	return s.Transition(ctx, id, split.PayoutProcessing, "", actor)
}

func (s *Service) Complete(ctx context.Context, id split.PayoutID, actor Actor) (split.Payout, error) {
	return s.Transition(ctx, id, split.PayoutCompleted, "", actor)
}

func (s *Service) Fail(ctx context.Context, id split.PayoutID, reason string, actor Actor) (split.Payout, error) {
	return s.Transition(ctx, id, split.PayoutFailed, reason, actor)
}

func (s *Service) Cancel(ctx context.Context, id split.PayoutID, reason string, actor Actor) (split.Payout, error) {
	return s.Transition(ctx, id, split.PayoutCancelled, reason, actor)
}

// PayoutBreakdown returns the {base, delta, final} record of a payout.
func (s *Service) PayoutBreakdown(ctx context.Context, id split.PayoutID) (split.Settlement, error) {
	p, err := s.Repo.GetPayout(ctx, id)
	if err != nil {
		return split.Settlement{}, err
	}
	return p.Settlement()
}

// mutate runs fn against a fresh read of the payout and writes it back with
// a version check, retrying on conflicts.
func (s *Service) mutate(ctx context.Context, id split.PayoutID, fn func(*split.Payout) error) (split.Payout, error) {
	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		p, err := s.Repo.GetPayout(ctx, id)
		if err != nil {
			return split.Payout{}, err
		}
		expected := p.Version
		if err := fn(&p); err != nil {
			return split.Payout{}, err
		}
		err = s.Repo.UpdatePayout(ctx, p, expected)
		if err == nil {
			p.Version = expected + 1
			return p, nil
		}
		if !split.IsRetryable(err) {
			return split.Payout{}, err
		}
		lastErr = err
		if ctx.Err() != nil {
			return split.Payout{}, ctx.Err()
		}
	}
	return split.Payout{}, fmt.Errorf("payout %s: gave up after %d attempts: %w", id, s.MaxRetries+1, lastErr)
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditTrail returns audit entries matching filter.
func (s *Service) AuditTrail(ctx context.Context, filter split.AuditFilter) ([]split.AuditEntry, error) {
	return s.Repo.QueryAudit(ctx, filter)
}

// audit records an entry. The business write already happened, so a failing
// audit append is reported but does not undo it.
func (s *Service) audit(ctx context.Context, actor Actor, action split.AuditAction, partnerID split.PartnerID, payoutID split.PayoutID, payload map[string]string) {
	entry := split.AuditEntry{
		ID:        s.newID(),
		At:        s.now(),
		ActorID:   actor.ID,
		Action:    action,
		PartnerID: partnerID,
		PayoutID:  payoutID,
		Payload:   payload,
	}
	if actor.Type != "" {
		entry.Payload["actor_type"] = actor.Type
	}
	if err := s.Repo.AppendAudit(ctx, entry); err != nil {
		logAuditFailure(entry, err)
	}
}

// Reset wipes the repository if it supports it.
func (s *Service) Reset(ctx context.Context) error {
	r, ok := s.Repo.(split.Resetter)
	if !ok {
		return split.ErrStoreRequired
	}
	return r.Reset(ctx)
}

func logAuditFailure(entry split.AuditEntry, err error) {
	log.Printf("[Settlement] Failed to append audit %s for payout %q: %v", entry.Action, entry.PayoutID, err)
}
