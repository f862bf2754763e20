// Package store provides Repository implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/revenue-share/split"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	rules      map[split.RuleID]split.SplitRule
	revenue    map[split.PartnerID][]split.RevenueEntry
	references map[string]bool
	payouts    map[split.PayoutID]split.Payout
	audit      []split.AuditEntry
}

func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.rules = make(map[split.RuleID]split.SplitRule)
	m.revenue = make(map[split.PartnerID][]split.RevenueEntry)
	m.references = make(map[string]bool)
	m.payouts = make(map[split.PayoutID]split.Payout)
	m.audit = nil
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

// =============================================================================
// RULES
// =============================================================================

func (m *Memory) InsertRule(_ context.Context, rule split.SplitRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var existing []split.SplitRule
	for _, r := range m.rules {
		if r.PartnerID == rule.PartnerID || r.ID == rule.ID {
			existing = append(existing, r)
		}
	}
	if err := rule.CheckInsert(existing); err != nil {
		return err
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *Memory) SaveRule(_ context.Context, rule split.SplitRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return split.ErrRuleNotFound
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *Memory) GetRule(_ context.Context, id split.RuleID) (split.SplitRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return split.SplitRule{}, split.ErrRuleNotFound
	}
	return r, nil
}

func (m *Memory) RulesByPartner(_ context.Context, partnerID split.PartnerID) ([]split.SplitRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []split.SplitRule
	for _, r := range m.rules {
		if r.PartnerID == partnerID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EffectiveFrom.Equal(result[j].EffectiveFrom) {
			return result[i].ID < result[j].ID
		}
		return result[i].EffectiveFrom.Before(result[j].EffectiveFrom)
	})
	return result, nil
}

// =============================================================================
// REVENUE
// =============================================================================

func (m *Memory) AppendRevenue(_ context.Context, entry split.RevenueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.Reference != "" {
		if m.references[entry.Reference] {
			return split.ErrDuplicateReference
		}
		m.references[entry.Reference] = true
	}

	entries := m.revenue[entry.PartnerID]
	// Binary search for insertion point, keeps entries ordered by OccurredAt.
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].OccurredAt.After(entry.OccurredAt)
	})
	entries = append(entries, split.RevenueEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = entry
	m.revenue[entry.PartnerID] = entries
	return nil
}

func (m *Memory) RevenueInPeriod(_ context.Context, partnerID split.PartnerID, p split.Period) ([]split.RevenueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []split.RevenueEntry
	for _, e := range m.revenue[partnerID] {
		if p.Contains(e.OccurredAt) {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// PAYOUTS
// =============================================================================

func (m *Memory) CreatePayout(_ context.Context, p split.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.payouts[p.ID]; exists {
		return split.ErrDuplicatePayout
	}
	for _, other := range m.payouts {
		if other.PartnerID == p.PartnerID && other.Status != split.PayoutCancelled && other.Period.Equal(p.Period) {
			return fmt.Errorf("payout %s already covers %s: %w", other.ID, p.Period, split.ErrDuplicatePayout)
		}
	}
	p = p.Clone()
	p.Version = 1
	m.payouts[p.ID] = p
	return nil
}

func (m *Memory) GetPayout(_ context.Context, id split.PayoutID) (split.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payouts[id]
	if !ok {
		return split.Payout{}, split.ErrPayoutNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) ListPayouts(_ context.Context, filter split.PayoutFilter) ([]split.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []split.Payout
	for _, p := range m.payouts {
		if filter.Matches(p) {
			result = append(result, p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) UpdatePayout(_ context.Context, p split.Payout, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.payouts[p.ID]
	if !ok {
		return split.ErrPayoutNotFound
	}
	if current.Version != expected {
		return split.ErrConcurrentModification
	}
	// Stored adjustments are immutable: the new list must extend the old one.
	if len(p.Adjustments) < len(current.Adjustments) {
		return split.ErrConcurrentModification
	}
	for i := range current.Adjustments {
		if p.Adjustments[i].ID != current.Adjustments[i].ID {
			return split.ErrConcurrentModification
		}
	}

	p = p.Clone()
	p.Version = expected + 1
	m.payouts[p.ID] = p
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry split.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, filter split.AuditFilter) ([]split.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []split.AuditEntry
	for _, e := range m.audit {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}
