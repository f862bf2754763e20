/*
store.go - Persistence interfaces

PURPOSE:
  Defines the boundary between the settlement service and storage. The
  service never touches globals; it is handed a Repository.

KEY INTERFACES:
  RuleStore:    Split rules per partner
  RevenueStore: Append-only revenue intake
  PayoutStore:  Payouts with optimistic versioning
  AuditLog:     Append-only record of who did what

UNIQUENESS:
  Stores enforce rule ID uniqueness, the no-overlap rule for active rules
  and one live payout per partner and period inside the write itself, so
  concurrent requests cannot both pass a read-then-write check.

OPTIMISTIC CONCURRENCY:
  UpdatePayout(ctx, p, expected) succeeds only if the stored version equals
  expected. The stored payout then has Version = expected+1. Adjustments
  already stored are never rewritten; new ones are appended in Seq order.

IMPLEMENTATIONS:
  - split/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - payout.go: Version semantics
  - settlement/service.go: CAS retry loop
*/
package split

import (
	"context"
	"time"
)

// RuleStore persists split rules.
type RuleStore interface {
	// InsertRule stores a new rule. It returns ErrDuplicateRule if the ID is
	// taken and ErrOverlappingRule if an active rule would overlap another
	// active rule of the partner (SplitRule.CheckInsert). Check and write are
	// atomic.
	InsertRule(ctx context.Context, rule SplitRule) error

	// SaveRule replaces an existing rule (status changes). Returns
	// ErrRuleNotFound if no rule has rule.ID.
	SaveRule(ctx context.Context, rule SplitRule) error

	// GetRule returns ErrRuleNotFound if the rule does not exist.
	GetRule(ctx context.Context, id RuleID) (SplitRule, error)

	// RulesByPartner returns the partner's rules ordered by EffectiveFrom.
	RulesByPartner(ctx context.Context, partnerID PartnerID) ([]SplitRule, error)
}

// RevenueStore persists revenue entries. Append-only.
type RevenueStore interface {
	// AppendRevenue returns ErrDuplicateReference if the reference exists.
	AppendRevenue(ctx context.Context, entry RevenueEntry) error

	// RevenueInPeriod returns the partner's entries with OccurredAt in p.
	RevenueInPeriod(ctx context.Context, partnerID PartnerID, p Period) ([]RevenueEntry, error)
}

// PayoutFilter narrows ListPayouts. Zero values match everything.
type PayoutFilter struct {
	PartnerID PartnerID
	Statuses  []PayoutStatus
}

// Matches reports whether p passes the filter.
func (f PayoutFilter) Matches(p Payout) bool {
	if f.PartnerID != "" && p.PartnerID != f.PartnerID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if p.Status == s {
			return true
		}
	}
	return false
}

// PayoutStore persists payouts and their adjustments.
type PayoutStore interface {
	// CreatePayout stores a new payout at version 1. It returns
	// ErrDuplicatePayout if the ID is taken or the partner already has a
	// payout for the same period that is not cancelled. Check and write are
	// atomic.
	CreatePayout(ctx context.Context, p Payout) error

	// GetPayout returns ErrPayoutNotFound if the payout does not exist.
	GetPayout(ctx context.Context, id PayoutID) (Payout, error)

	// ListPayouts returns payouts ordered by CreatedAt.
	ListPayouts(ctx context.Context, filter PayoutFilter) ([]Payout, error)

	// UpdatePayout is a compare-and-swap on Version.
	// Returns ErrConcurrentModification if the stored version differs from expected.
	UpdatePayout(ctx context.Context, p Payout, expected int64) error
}

// Repository is everything the settlement service needs.
type Repository interface {
	RuleStore
	RevenueStore
	PayoutStore
	AuditLog
}

// Resetter is implemented by stores that can wipe all data (demo scenarios).
type Resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// AUDIT LOG - tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditRuleRegistered  AuditAction = "rule_registered"
	AuditRuleDeactivated AuditAction = "rule_deactivated"
	AuditRevenueRecorded AuditAction = "revenue_recorded"
	AuditPayoutCreated   AuditAction = "payout_created"
	AuditAdjustment      AuditAction = "adjustment_added"
	AuditStatusChanged   AuditAction = "status_changed"
)

// AuditEntry records one operator or system action.
type AuditEntry struct {
	ID        string
	At        time.Time
	ActorID   string
	Action    AuditAction
	PartnerID PartnerID
	PayoutID  PayoutID
	Payload   map[string]string
}

type AuditFilter struct {
	PartnerID PartnerID
	PayoutID  PayoutID
	Actions   []AuditAction
}

// Matches reports whether e passes the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.PartnerID != "" && e.PartnerID != f.PartnerID {
		return false
	}
	if f.PayoutID != "" && e.PayoutID != f.PayoutID {
		return false
	}
	if len(f.Actions) == 0 {
		return true
	}
	for _, a := range f.Actions {
		if e.Action == a {
			return true
		}
	}
	return false
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
