package split_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/revenue-share/split"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestSplitRule_Validate(t *testing.T) {
	valid := split.SplitRule{
		ID: "r1", PartnerID: "p1", Terms: pct("30"),
		EffectiveFrom: day(2025, 1, 1), Status: split.RuleActive,
	}
	require.NoError(t, valid.Validate())

	missingPartner := valid
	missingPartner.PartnerID = ""
	assert.ErrorIs(t, missingPartner.Validate(), split.ErrValidation)

	backwards := valid
	backwards.EffectiveTo = ptr(day(2024, 12, 31))
	assert.ErrorIs(t, backwards.Validate(), split.ErrValidation)

	badStatus := valid
	badStatus.Status = "draft"
	assert.ErrorIs(t, badStatus.Validate(), split.ErrValidation)

	badTerms := valid
	badTerms.Terms = pct("150")
	assert.ErrorIs(t, badTerms.Validate(), split.ErrValidation)
}

func TestSplitRule_Covers(t *testing.T) {
	r := split.SplitRule{
		EffectiveFrom: day(2025, 1, 1),
		EffectiveTo:   ptr(day(2025, 6, 30)),
		Status:        split.RuleActive,
	}
	assert.False(t, r.Covers(day(2024, 12, 31)))
	assert.True(t, r.Covers(day(2025, 1, 1)))
	assert.True(t, r.Covers(time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)), "end date is inclusive")
	assert.False(t, r.Covers(day(2025, 7, 1)))

	r.Status = split.RuleInactive
	assert.False(t, r.IsActiveAt(day(2025, 3, 1)))

	open := split.SplitRule{EffectiveFrom: day(2025, 1, 1), Status: split.RuleActive}
	assert.True(t, open.IsActiveAt(day(2040, 1, 1)))
}

func TestSplitRule_Overlaps(t *testing.T) {
	h1 := split.SplitRule{EffectiveFrom: day(2025, 1, 1), EffectiveTo: ptr(day(2025, 6, 30))}
	h2 := split.SplitRule{EffectiveFrom: day(2025, 7, 1)}
	touching := split.SplitRule{EffectiveFrom: day(2025, 6, 30), EffectiveTo: ptr(day(2025, 8, 1))}

	assert.False(t, h1.Overlaps(h2))
	assert.True(t, h1.Overlaps(touching))
	assert.True(t, h2.Overlaps(touching))
}

func TestSplitRule_Compute(t *testing.T) {
	r := split.SplitRule{Terms: guarantee(5_000_000, "30")}
	share, err := r.Compute(10_000_000)
	require.NoError(t, err)
	assert.Equal(t, split.Cents(5_000_000), share)
}

func TestPeriodFor(t *testing.T) {
	at := day(2025, 5, 17)

	m := split.PeriodFor(split.PeriodMonthly, at)
	assert.Equal(t, day(2025, 5, 1), m.Start)
	assert.Equal(t, day(2025, 5, 31), m.End)

	q := split.PeriodFor(split.PeriodQuarterly, at)
	assert.Equal(t, day(2025, 4, 1), q.Start)
	assert.Equal(t, day(2025, 6, 30), q.End)

	y := split.PeriodFor(split.PeriodYearly, at)
	assert.Equal(t, day(2025, 1, 1), y.Start)
	assert.Equal(t, day(2025, 12, 31), y.End)

	feb := split.PeriodFor(split.PeriodMonthly, day(2024, 2, 10))
	assert.Equal(t, day(2024, 2, 29), feb.End)
	assert.Equal(t, day(2024, 3, 1), feb.Next(split.PeriodMonthly).Start)
}

func TestPeriod_ContainsAndBounds(t *testing.T) {
	p, err := split.NewPeriod(day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	assert.True(t, p.Contains(time.Date(2025, 1, 31, 22, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(day(2025, 2, 1)))
	assert.True(t, p.EndsBefore(day(2025, 2, 1)))
	assert.False(t, p.EndsBefore(day(2025, 1, 31)))

	_, err = split.NewPeriod(day(2025, 2, 1), day(2025, 1, 1))
	assert.ErrorIs(t, err, split.ErrValidation)
}
