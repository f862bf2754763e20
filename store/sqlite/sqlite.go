/*
Package sqlite provides a SQLite-backed implementation of split.Repository.

PURPOSE:
  Persists rules, revenue, payouts, adjustments and the audit log in
  SQLite. The contract is the same as the in-memory store, so the
  settlement service and the API run unchanged on either.

KEY TABLES:
  split_rules:  Rule terms flattened into type, rate, floor, baseline
  revenue:      Gross revenue entries, unique on reference
  payouts:      One row per payout with a version column
  adjustments:  Append-only, (payout_id, seq) unique
  audit_log:    Append-only operator/system trail

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE on adjustments, revenue or audit_log (Reset aside)
  - UpdatePayout only inserts adjustments past the stored sequence and
    rejects a list that does not extend the stored one

OPTIMISTIC LOCKING:
  UpdatePayout runs
    UPDATE payouts SET ..., version = version + 1 WHERE id = ? AND version = ?
  inside a transaction. Zero rows affected means another writer got there
  first and split.ErrConcurrentModification is returned.

CONCURRENCY:
  Uses sync.RWMutex plus a single open connection. SQLite has one writer
  at a time anyway, and ":memory:" databases are per-connection.

USAGE:
  store, err := sqlite.New("./data/revenue.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := settlement.NewService(store, "USD")

SEE ALSO:
  - split/store.go: Interface definitions
  - split/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/revenue-share/split"
)

// Store implements split.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ split.Repository = (*Store)(nil)
	_ split.Resetter   = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Split rules (terms flattened per variant)
	CREATE TABLE IF NOT EXISTS split_rules (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		split_type TEXT NOT NULL,
		rate TEXT,
		floor_cents INTEGER,
		baseline TEXT,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_partner
		ON split_rules(partner_id, effective_from);

	-- Revenue (append-only)
	CREATE TABLE IF NOT EXISTS revenue (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL CHECK (amount_cents >= 0),
		occurred_at TEXT NOT NULL,
		occurred_day TEXT NOT NULL,
		reference TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Hot path: partner share for a period
	CREATE INDEX IF NOT EXISTS idx_revenue_partner_day
		ON revenue(partner_id, occurred_day);

	-- Payouts
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		revenue_cents INTEGER NOT NULL,
		base_cents INTEGER NOT NULL,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		failure_reason TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payouts_partner
		ON payouts(partner_id);
	CREATE INDEX IF NOT EXISTS idx_payouts_status
		ON payouts(status);

	-- One live payout per partner and period
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payouts_live_period
		ON payouts(partner_id, period_start, period_end) WHERE status != 'cancelled';

	-- Adjustments (append-only, ordered by seq within a payout)
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		payout_id TEXT NOT NULL REFERENCES payouts(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		adj_type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL CHECK (amount_cents >= 0),
		reason TEXT NOT NULL,
		approved_by TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(payout_id, seq)
	);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		at TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		partner_id TEXT,
		payout_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_payout
		ON audit_log(payout_id) WHERE payout_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_audit_partner
		ON audit_log(partner_id) WHERE partner_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RULE STORE (split.RuleStore interface)
// =============================================================================

// InsertRule stores a new rule. The ID and overlap checks run in the same
// transaction as the insert.
func (s *Store) InsertRule(ctx context.Context, rule split.SplitRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate, floor, baseline, err := flattenTerms(rule.Terms)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT "+ruleColumns+" FROM split_rules WHERE partner_id = ? OR id = ?",
			rule.PartnerID, rule.ID)
		if err != nil {
			return err
		}
		existing, err := scanRules(rows)
		if err != nil {
			return err
		}
		if err := rule.CheckInsert(existing); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO split_rules (id, partner_id, split_type, rate, floor_cents, baseline,
				effective_from, effective_to, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.ID, rule.PartnerID, rule.Terms.Type(), rate, floor, baseline,
			rule.EffectiveFrom.Format(split.DateLayout), effectiveTo(rule), rule.Status,
			formatTime(rule.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("rule %s: %w", rule.ID, split.ErrDuplicateRule)
			}
			return fmt.Errorf("failed to insert rule: %w", err)
		}
		return nil
	})
}

// SaveRule replaces an existing rule.
func (s *Store) SaveRule(ctx context.Context, rule split.SplitRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate, floor, baseline, err := flattenTerms(rule.Terms)
	if err != nil {
		return err
	}

	query := `
		UPDATE split_rules SET
			partner_id = ?, split_type = ?, rate = ?, floor_cents = ?, baseline = ?,
			effective_from = ?, effective_to = ?, status = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		rule.PartnerID, rule.Terms.Type(), rate, floor, baseline,
		rule.EffectiveFrom.Format(split.DateLayout), effectiveTo(rule), rule.Status,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return split.ErrRuleNotFound
	}
	return nil
}

// flattenTerms maps the terms variant onto the rate/floor/baseline columns.
func flattenTerms(terms split.Terms) (rate sql.NullString, floor sql.NullInt64, baseline sql.NullString, err error) {
	switch t := terms.(type) {
	case split.Percentage:
		rate = nullString(t.Rate.String())
	case split.MinimumGuarantee:
		floor = sql.NullInt64{Int64: int64(t.Floor), Valid: true}
		baseline = nullString(t.Baseline.String())
	default:
		err = &split.ValidationError{Field: "type", Reason: "rule has no terms"}
	}
	return
}

func effectiveTo(rule split.SplitRule) sql.NullString {
	if rule.EffectiveTo == nil {
		return sql.NullString{}
	}
	return nullString(rule.EffectiveTo.Format(split.DateLayout))
}

const ruleColumns = `id, partner_id, split_type, rate, floor_cents, baseline,
	effective_from, effective_to, status, created_at`

// GetRule retrieves a rule by ID.
func (s *Store) GetRule(ctx context.Context, id split.RuleID) (split.SplitRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+ruleColumns+" FROM split_rules WHERE id = ?", id)
	if err != nil {
		return split.SplitRule{}, err
	}
	rules, err := scanRules(rows)
	if err != nil {
		return split.SplitRule{}, err
	}
	if len(rules) == 0 {
		return split.SplitRule{}, split.ErrRuleNotFound
	}
	return rules[0], nil
}

// RulesByPartner returns a partner's rules ordered by effective date.
func (s *Store) RulesByPartner(ctx context.Context, partnerID split.PartnerID) ([]split.SplitRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM split_rules WHERE partner_id = ? ORDER BY effective_from, id",
		partnerID)
	if err != nil {
		return nil, err
	}
	return scanRules(rows)
}

func scanRules(rows *sql.Rows) ([]split.SplitRule, error) {
	defer rows.Close()

	var rules []split.SplitRule
	for rows.Next() {
		var r split.SplitRule
		var splitType, effectiveFrom, createdAt string
		var rate, baseline, effectiveTo sql.NullString
		var floor sql.NullInt64
		if err := rows.Scan(&r.ID, &r.PartnerID, &splitType, &rate, &floor, &baseline,
			&effectiveFrom, &effectiveTo, &r.Status, &createdAt); err != nil {
			return nil, err
		}

		terms, err := parseTerms(split.SplitType(splitType), rate, floor, baseline)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		r.Terms = terms
		r.EffectiveFrom, _ = time.Parse(split.DateLayout, effectiveFrom)
		if effectiveTo.Valid {
			t, _ := time.Parse(split.DateLayout, effectiveTo.String)
			r.EffectiveTo = &t
		}
		r.CreatedAt = parseTime(createdAt)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func parseTerms(t split.SplitType, rate sql.NullString, floor sql.NullInt64, baseline sql.NullString) (split.Terms, error) {
	switch t {
	case split.SplitPercentage:
		d, err := decimal.NewFromString(rate.String)
		if err != nil {
			return nil, fmt.Errorf("bad rate %q: %w", rate.String, err)
		}
		return split.Percentage{Rate: d}, nil
	case split.SplitMinimumGuarantee:
		mg := split.MinimumGuarantee{Floor: split.Cents(floor.Int64)}
		if baseline.Valid {
			d, err := decimal.NewFromString(baseline.String)
			if err != nil {
				return nil, fmt.Errorf("bad baseline %q: %w", baseline.String, err)
			}
			mg.Baseline = d
		}
		return mg, nil
	}
	return nil, fmt.Errorf("unknown split type %q", t)
}

// =============================================================================
// REVENUE STORE (split.RevenueStore interface)
// =============================================================================

// AppendRevenue records a revenue entry. A reused reference is rejected.
func (s *Store) AppendRevenue(ctx context.Context, entry split.RevenueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO revenue (id, partner_id, amount_cents, occurred_at, occurred_day, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.PartnerID, int64(entry.Amount),
		formatTime(entry.OccurredAt), split.DayOf(entry.OccurredAt).Format(split.DateLayout),
		nullString(entry.Reference), formatTime(entry.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "revenue.reference") {
			return split.ErrDuplicateReference
		}
		return fmt.Errorf("failed to append revenue: %w", err)
	}
	return nil
}

// RevenueInPeriod returns the partner's entries whose day falls in p.
func (s *Store) RevenueInPeriod(ctx context.Context, partnerID split.PartnerID, p split.Period) ([]split.RevenueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, partner_id, amount_cents, occurred_at, reference, created_at
		FROM revenue
		WHERE partner_id = ? AND occurred_day BETWEEN ? AND ?
		ORDER BY occurred_at, rowid
	`
	rows, err := s.db.QueryContext(ctx, query, partnerID,
		p.Start.Format(split.DateLayout), p.End.Format(split.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []split.RevenueEntry
	for rows.Next() {
		var e split.RevenueEntry
		var amount int64
		var occurredAt, createdAt string
		var reference sql.NullString
		if err := rows.Scan(&e.ID, &e.PartnerID, &amount, &occurredAt, &reference, &createdAt); err != nil {
			return nil, err
		}
		e.Amount = split.Cents(amount)
		e.OccurredAt = parseTime(occurredAt)
		e.Reference = reference.String
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// PAYOUT STORE (split.PayoutStore interface)
// =============================================================================

// CreatePayout inserts a new payout at version 1 with its adjustments.
func (s *Store) CreatePayout(ctx context.Context, p split.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO payouts (id, partner_id, rule_id, period_start, period_end, revenue_cents,
				base_cents, amount_cents, currency, status, failure_reason, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			p.ID, p.PartnerID, p.RuleID,
			p.Period.Start.Format(split.DateLayout), p.Period.End.Format(split.DateLayout),
			int64(p.Revenue), int64(p.BaseAmount), int64(p.Amount), p.Currency, p.Status,
			nullString(p.FailureReason), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("payout %s for %s %s: %w", p.ID, p.PartnerID, p.Period, split.ErrDuplicatePayout)
			}
			return fmt.Errorf("failed to create payout: %w", err)
		}
		return insertAdjustments(ctx, tx, p.ID, p.Adjustments)
	})
}

const payoutColumns = `id, partner_id, rule_id, period_start, period_end, revenue_cents,
	base_cents, amount_cents, currency, status, failure_reason, version, created_at, updated_at`

// GetPayout retrieves a payout with its adjustments.
func (s *Store) GetPayout(ctx context.Context, id split.PayoutID) (split.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payouts, err := s.queryPayouts(ctx, s.db, "SELECT "+payoutColumns+" FROM payouts WHERE id = ?", id)
	if err != nil {
		return split.Payout{}, err
	}
	if len(payouts) == 0 {
		return split.Payout{}, split.ErrPayoutNotFound
	}
	return payouts[0], nil
}

// ListPayouts returns payouts matching filter ordered by creation.
func (s *Store) ListPayouts(ctx context.Context, filter split.PayoutFilter) ([]split.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.PartnerID != "" {
		where = append(where, "partner_id = ?")
		args = append(args, filter.PartnerID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, st)
		}
	}

	query := "SELECT " + payoutColumns + " FROM payouts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	return s.queryPayouts(ctx, s.db, query, args...)
}

// UpdatePayout writes p if the stored version equals expected.
func (s *Store) UpdatePayout(ctx context.Context, p split.Payout, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE payouts SET
				amount_cents = ?, status = ?, failure_reason = ?, updated_at = ?,
				version = version + 1
			WHERE id = ? AND version = ?
		`
		res, err := tx.ExecContext(ctx, query,
			int64(p.Amount), p.Status, nullString(p.FailureReason), formatTime(p.UpdatedAt),
			p.ID, expected,
		)
		if err != nil {
			return fmt.Errorf("failed to update payout: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payouts WHERE id = ?", p.ID).Scan(&exists)
			if err != nil {
				return err
			}
			if exists == 0 {
				return split.ErrPayoutNotFound
			}
			return split.ErrConcurrentModification
		}

		// Stored adjustments are immutable: the new list must extend the old one.
		stored, err := adjustmentIDs(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if len(p.Adjustments) < len(stored) {
			return split.ErrConcurrentModification
		}
		for i, id := range stored {
			if p.Adjustments[i].ID != id {
				return split.ErrConcurrentModification
			}
		}
		return insertAdjustments(ctx, tx, p.ID, p.Adjustments[len(stored):])
	})
}

func (s *Store) queryPayouts(ctx context.Context, db execer, query string, args ...any) ([]split.Payout, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var payouts []split.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		payouts = append(payouts, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Single connection: adjustments are loaded after the payout cursor closes.
	for i := range payouts {
		adjs, err := loadAdjustments(ctx, db, payouts[i].ID)
		if err != nil {
			return nil, err
		}
		payouts[i].Adjustments = adjs
	}
	return payouts, nil
}

func scanPayout(rows *sql.Rows) (split.Payout, error) {
	var p split.Payout
	var periodStart, periodEnd, createdAt, updatedAt string
	var revenue, base, amount int64
	var failureReason sql.NullString
	err := rows.Scan(&p.ID, &p.PartnerID, &p.RuleID, &periodStart, &periodEnd,
		&revenue, &base, &amount, &p.Currency, &p.Status, &failureReason,
		&p.Version, &createdAt, &updatedAt)
	if err != nil {
		return split.Payout{}, err
	}

	p.Period.Start, _ = time.Parse(split.DateLayout, periodStart)
	p.Period.End, _ = time.Parse(split.DateLayout, periodEnd)
	p.Revenue = split.Cents(revenue)
	p.BaseAmount = split.Cents(base)
	p.Amount = split.Cents(amount)
	p.FailureReason = failureReason.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func insertAdjustments(ctx context.Context, db execer, payoutID split.PayoutID, adjs []split.Adjustment) error {
	query := `
		INSERT INTO adjustments (id, payout_id, seq, adj_type, amount_cents, reason,
			approved_by, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, a := range adjs {
		_, err := db.ExecContext(ctx, query,
			a.ID, payoutID, a.Seq, a.Type, int64(a.Amount), a.Reason,
			nullString(a.ApprovedBy), nullString(a.CreatedBy), formatTime(a.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return split.ErrConcurrentModification
			}
			return fmt.Errorf("failed to insert adjustment: %w", err)
		}
	}
	return nil
}

func adjustmentIDs(ctx context.Context, db execer, payoutID split.PayoutID) ([]split.AdjustmentID, error) {
	rows, err := db.QueryContext(ctx, "SELECT id FROM adjustments WHERE payout_id = ? ORDER BY seq", payoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []split.AdjustmentID
	for rows.Next() {
		var id split.AdjustmentID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadAdjustments(ctx context.Context, db execer, payoutID split.PayoutID) ([]split.Adjustment, error) {
	query := `
		SELECT id, payout_id, seq, adj_type, amount_cents, reason, approved_by, created_by, created_at
		FROM adjustments WHERE payout_id = ? ORDER BY seq
	`
	rows, err := db.QueryContext(ctx, query, payoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjs []split.Adjustment
	for rows.Next() {
		var a split.Adjustment
		var amount int64
		var approvedBy, createdBy sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.PayoutID, &a.Seq, &a.Type, &amount, &a.Reason,
			&approvedBy, &createdBy, &createdAt); err != nil {
			return nil, err
		}
		a.Amount = split.Cents(amount)
		a.ApprovedBy = approvedBy.String
		a.CreatedBy = createdBy.String
		a.CreatedAt = parseTime(createdAt)
		adjs = append(adjs, a)
	}
	return adjs, rows.Err()
}

// =============================================================================
// AUDIT LOG (split.AuditLog interface)
// =============================================================================

// AppendAudit records an audit entry.
func (s *Store) AppendAudit(ctx context.Context, entry split.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, at, actor_id, action, partner_id, payout_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID, formatTime(entry.At), nullString(entry.ActorID), entry.Action,
		nullString(string(entry.PartnerID)), nullString(string(entry.PayoutID)), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns audit entries matching filter in insertion order.
func (s *Store) QueryAudit(ctx context.Context, filter split.AuditFilter) ([]split.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.PartnerID != "" {
		where = append(where, "partner_id = ?")
		args = append(args, filter.PartnerID)
	}
	if filter.PayoutID != "" {
		where = append(where, "payout_id = ?")
		args = append(args, filter.PayoutID)
	}
	if len(filter.Actions) > 0 {
		where = append(where, "action IN ("+placeholders(len(filter.Actions))+")")
		for _, a := range filter.Actions {
			args = append(args, a)
		}
	}

	query := "SELECT id, at, actor_id, action, partner_id, payout_id, payload_json FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []split.AuditEntry
	for rows.Next() {
		var e split.AuditEntry
		var at string
		var actorID, partnerID, payoutID, payload sql.NullString
		if err := rows.Scan(&e.ID, &at, &actorID, &e.Action, &partnerID, &payoutID, &payload); err != nil {
			return nil, err
		}
		e.At = parseTime(at)
		e.ActorID = actorID.String
		e.PartnerID = split.PartnerID(partnerID.String)
		e.PayoutID = split.PayoutID(payoutID.String)
		if payload.Valid && payload.String != "null" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("audit %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"adjustments", "payouts", "revenue", "split_rules", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction. Caller holds s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// timeLayout is fixed width so ORDER BY on the text column is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
