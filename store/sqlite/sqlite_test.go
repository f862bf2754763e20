package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/revenue-share/settlement"
	"github.com/warp/revenue-share/split"
	"github.com/warp/revenue-share/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var created = time.Date(2025, 2, 1, 8, 30, 0, 0, time.UTC)

func newPayout(id split.PayoutID) split.Payout {
	return split.Payout{
		ID:         id,
		PartnerID:  "partner-1",
		RuleID:     "rule-1",
		Period:     split.PeriodFor(split.PeriodMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Revenue:    10_000,
		BaseAmount: 1_000,
		Amount:     1_000,
		Currency:   "USD",
		Status:     split.PayoutPending,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestRules_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pct := split.SplitRule{
		ID: "r1", PartnerID: "acme",
		Terms:         split.Percentage{Rate: decimal.RequireFromString("12.5")},
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EffectiveTo:   &end,
		Status:        split.RuleActive,
		CreatedAt:     created,
	}
	mg := split.SplitRule{
		ID: "r2", PartnerID: "acme",
		Terms:         split.MinimumGuarantee{Floor: 5_000_000, Baseline: decimal.NewFromInt(30)},
		EffectiveFrom: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Status:        split.RuleActive,
		CreatedAt:     created,
	}
	require.NoError(t, s.InsertRule(ctx, mg))
	require.NoError(t, s.InsertRule(ctx, pct))

	rules, err := s.RulesByPartner(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, split.RuleID("r1"), rules[0].ID)
	require.NotNil(t, rules[0].EffectiveTo)
	assert.True(t, end.Equal(*rules[0].EffectiveTo))
	assert.Equal(t, created, rules[0].CreatedAt)

	share, err := rules[0].Compute(10_001)
	require.NoError(t, err)
	assert.Equal(t, split.Cents(1_250), share)

	share, err = rules[1].Compute(10_000_000)
	require.NoError(t, err)
	assert.Equal(t, split.Cents(5_000_000), share)

	// Status change through SaveRule
	mg.Status = split.RuleInactive
	require.NoError(t, s.SaveRule(ctx, mg))
	got, err := s.GetRule(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, split.RuleInactive, got.Status)

	_, err = s.GetRule(ctx, "missing")
	assert.ErrorIs(t, err, split.ErrRuleNotFound)

	missing := pct
	missing.ID = "missing"
	assert.ErrorIs(t, s.SaveRule(ctx, missing), split.ErrRuleNotFound)
}

func newRule(id split.RuleID, partner split.PartnerID, from time.Time) split.SplitRule {
	return split.SplitRule{
		ID: id, PartnerID: partner,
		Terms:         split.Percentage{Rate: decimal.NewFromInt(30)},
		EffectiveFrom: from,
		Status:        split.RuleActive,
		CreatedAt:     created,
	}
}

func TestInsertRule_RejectsReusedIDAndOverlap(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertRule(ctx, newRule("r1", "acme", jan)))

	// GIVEN: the same ID for another partner
	hijack := newRule("r1", "globex", jan)
	hijack.Terms = split.Percentage{Rate: decimal.NewFromInt(90)}

	// THEN: rejected and the stored rule is untouched
	assert.ErrorIs(t, s.InsertRule(ctx, hijack), split.ErrDuplicateRule)
	got, err := s.GetRule(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, split.PartnerID("acme"), got.PartnerID)
	assert.True(t, got.Terms.(split.Percentage).Rate.Equal(decimal.NewFromInt(30)))

	assert.ErrorIs(t, s.InsertRule(ctx, newRule("r2", "acme", jan.AddDate(0, 3, 0))), split.ErrOverlappingRule)

	inactive := newRule("r3", "acme", jan)
	inactive.Status = split.RuleInactive
	require.NoError(t, s.InsertRule(ctx, inactive))
	require.NoError(t, s.InsertRule(ctx, newRule("r4", "globex", jan)))
}

func TestInsertRule_ConcurrentOverlapsSerialize(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.InsertRule(ctx, newRule(split.RuleID(fmt.Sprintf("r%d", i)), "acme", jan))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, split.ErrOverlappingRule)
		}
	}
	assert.Equal(t, 1, wins)
	rules, err := s.RulesByPartner(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestRevenue_PeriodAndReferences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	jan := func(d int) time.Time { return time.Date(2025, 1, d, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.AppendRevenue(ctx, split.RevenueEntry{ID: "e2", PartnerID: "p", Amount: 2, OccurredAt: jan(31), Reference: "inv-2"}))
	require.NoError(t, s.AppendRevenue(ctx, split.RevenueEntry{ID: "e1", PartnerID: "p", Amount: 1, OccurredAt: jan(1), Reference: "inv-1"}))
	require.NoError(t, s.AppendRevenue(ctx, split.RevenueEntry{ID: "e3", PartnerID: "p", Amount: 3, OccurredAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, s.AppendRevenue(ctx, split.RevenueEntry{ID: "e4", PartnerID: "p", Amount: 4, OccurredAt: jan(2)}))
	assert.ErrorIs(t, s.AppendRevenue(ctx, split.RevenueEntry{ID: "dup", PartnerID: "p", OccurredAt: jan(3), Reference: "inv-1"}), split.ErrDuplicateReference)

	entries, err := s.RevenueInPeriod(ctx, "p", split.PeriodFor(split.PeriodMonthly, jan(1)))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "e4", entries[1].ID)
	assert.Equal(t, "e2", entries[2].ID)
	assert.Equal(t, "inv-1", entries[0].Reference)
	assert.Equal(t, "", entries[1].Reference)
	assert.Equal(t, split.Cents(2), entries[2].Amount)
}

func TestPayout_CAS(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreatePayout(ctx, newPayout("p1")))
	assert.ErrorIs(t, s.CreatePayout(ctx, newPayout("p1")), split.ErrDuplicatePayout)

	// GIVEN: two readers at version 1
	a, err := s.GetPayout(ctx, "p1")
	require.NoError(t, err)
	b, err := s.GetPayout(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Version)

	// WHEN: the first writes an adjustment
	require.NoError(t, a.AppendAdjustment(split.Adjustment{ID: "adj-a", Type: split.AdjustIncrease, Amount: 5, Reason: "a", ApprovedBy: "cfo"}, created))
	require.NoError(t, s.UpdatePayout(ctx, a, a.Version))

	// THEN: the second writer loses
	require.NoError(t, b.Transition(split.PayoutProcessing, "", created))
	assert.ErrorIs(t, s.UpdatePayout(ctx, b, b.Version), split.ErrConcurrentModification)

	stored, err := s.GetPayout(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, split.PayoutPending, stored.Status)
	assert.Equal(t, split.Cents(1_005), stored.Amount)
	require.Len(t, stored.Adjustments, 1)
	assert.Equal(t, split.AdjustmentID("adj-a"), stored.Adjustments[0].ID)
	assert.Equal(t, 1, stored.Adjustments[0].Seq)
	assert.Equal(t, "cfo", stored.Adjustments[0].ApprovedBy)
	assert.Equal(t, split.PayoutID("p1"), stored.Adjustments[0].PayoutID)

	assert.ErrorIs(t, s.UpdatePayout(ctx, newPayout("missing"), 1), split.ErrPayoutNotFound)
	_, err = s.GetPayout(ctx, "missing")
	assert.ErrorIs(t, err, split.ErrPayoutNotFound)
}

func TestPayout_CannotRewriteAdjustments(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p := newPayout("p1")
	require.NoError(t, p.AppendAdjustment(split.Adjustment{ID: "adj-1", Type: split.AdjustIncrease, Amount: 5, Reason: "a"}, created))
	require.NoError(t, s.CreatePayout(ctx, p))

	stored, err := s.GetPayout(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, stored.Adjustments, 1)

	stored.Adjustments = nil
	assert.ErrorIs(t, s.UpdatePayout(ctx, stored, stored.Version), split.ErrConcurrentModification)

	// Version was not consumed by the rejected write
	again, err := s.GetPayout(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Version)
}

func TestPayout_ListFilter(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i, partner := range []split.PartnerID{"a", "b", "a"} {
		p := newPayout(split.PayoutID(fmt.Sprintf("p%d", i)))
		p.PartnerID = partner
		p.Period = split.PeriodFor(split.PeriodMonthly, time.Date(2025, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC))
		p.CreatedAt = created.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, s.CreatePayout(ctx, p))
	}
	p2, err := s.GetPayout(ctx, "p2")
	require.NoError(t, err)
	require.NoError(t, p2.Transition(split.PayoutCancelled, "dup", created))
	require.NoError(t, s.UpdatePayout(ctx, p2, p2.Version))

	all, err := s.ListPayouts(ctx, split.PayoutFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, split.PayoutID("p0"), all[0].ID)

	partnerA, err := s.ListPayouts(ctx, split.PayoutFilter{PartnerID: "a"})
	require.NoError(t, err)
	assert.Len(t, partnerA, 2)

	pending, err := s.ListPayouts(ctx, split.PayoutFilter{PartnerID: "a", Statuses: []split.PayoutStatus{split.PayoutPending}})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, split.PayoutID("p0"), pending[0].ID)

	cancelled, err := s.GetPayout(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "dup", cancelled.FailureReason)
}

func TestPayout_OneLivePayoutPerPeriod(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreatePayout(ctx, newPayout("p1")))
	assert.ErrorIs(t, s.CreatePayout(ctx, newPayout("p2")), split.ErrDuplicatePayout)

	other := newPayout("p3")
	other.PartnerID = "partner-2"
	require.NoError(t, s.CreatePayout(ctx, other))

	// Cancelling frees the period
	p1, err := s.GetPayout(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, p1.Transition(split.PayoutCancelled, "wrong import", created))
	require.NoError(t, s.UpdatePayout(ctx, p1, p1.Version))
	require.NoError(t, s.CreatePayout(ctx, newPayout("p2")))
}

func TestPayout_ConcurrentCreatesForOnePeriod(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreatePayout(ctx, newPayout(split.PayoutID(fmt.Sprintf("p%d", i))))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, split.ErrDuplicatePayout)
		}
	}
	assert.Equal(t, 1, wins)
	live, err := s.ListPayouts(ctx, split.PayoutFilter{PartnerID: "partner-1"})
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestPayout_ConcurrentAdjustmentsSerialize(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreatePayout(ctx, newPayout("p1")))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.GetPayout(ctx, "p1")
			if err != nil {
				return
			}
			adj := split.Adjustment{ID: split.AdjustmentID(fmt.Sprintf("adj-%d", i)), Type: split.AdjustIncrease, Amount: 1, Reason: "race"}
			if err := p.AppendAdjustment(adj, created); err != nil {
				return
			}
			if s.UpdatePayout(ctx, p, p.Version) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	stored, err := s.GetPayout(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1+wins), stored.Version)
	assert.Len(t, stored.Adjustments, wins)
	assert.Equal(t, split.Cents(1_000+wins), stored.Amount)
}

func TestAudit_QueryAndReset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.AppendAudit(ctx, split.AuditEntry{ID: "a1", At: created, ActorID: "ops", Action: split.AuditPayoutCreated, PartnerID: "acme", PayoutID: "p1", Payload: map[string]string{"amount": "100"}}))
	require.NoError(t, s.AppendAudit(ctx, split.AuditEntry{ID: "a2", At: created, Action: split.AuditAdjustment, PayoutID: "p2"}))
	require.NoError(t, s.AppendAudit(ctx, split.AuditEntry{ID: "a3", At: created, Action: split.AuditRuleRegistered, PartnerID: "acme"}))

	got, err := s.QueryAudit(ctx, split.AuditFilter{PayoutID: "p1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "100", got[0].Payload["amount"])
	assert.Equal(t, created, got[0].At)

	got, err = s.QueryAudit(ctx, split.AuditFilter{PartnerID: "acme", Actions: []split.AuditAction{split.AuditRuleRegistered}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a3", got[0].ID)

	require.NoError(t, s.Reset(ctx))
	got, err = s.QueryAudit(ctx, split.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// The settlement scenario end to end on SQLite.
func TestSettlement_OnSQLite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := settlement.NewService(s, "USD")
	ops := settlement.Actor{ID: "ops", Type: "operator"}

	_, err := svc.RegisterRule(ctx, split.SplitRule{
		PartnerID:     "acme",
		Terms:         split.Percentage{Rate: decimal.NewFromInt(30)},
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, ops)
	require.NoError(t, err)
	_, err = svc.RecordRevenue(ctx, split.RevenueEntry{
		PartnerID: "acme", Amount: 15_000_000, Reference: "inv-1",
		OccurredAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}, ops)
	require.NoError(t, err)

	period := split.PeriodFor(split.PeriodMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	p, err := svc.CreatePayout(ctx, "acme", period, ops)
	require.NoError(t, err)
	assert.Equal(t, split.Cents(4_500_000), p.Amount)

	p, err = svc.AddAdjustment(ctx, p.ID, settlement.AdjustmentInput{Type: split.AdjustIncrease, Amount: 500_000, Reason: "late invoice"}, ops)
	require.NoError(t, err)
	assert.Equal(t, split.Cents(5_000_000), p.Amount)

	_, err = svc.StartProcessing(ctx, p.ID, ops)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, p.ID, ops)
	require.NoError(t, err)

	_, err = svc.AddAdjustment(ctx, p.ID, settlement.AdjustmentInput{Type: split.AdjustIncrease, Amount: 1, Reason: "late"}, ops)
	assert.ErrorIs(t, err, split.ErrInvalidState)

	final, err := svc.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, split.PayoutCompleted, final.Status)
	assert.Equal(t, int64(4), final.Version)

	trail, err := svc.AuditTrail(ctx, split.AuditFilter{PayoutID: p.ID})
	require.NoError(t, err)
	assert.Len(t, trail, 4) // created, adjusted, processing, completed
}
