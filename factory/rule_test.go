package factory_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/revenue-share/factory"
	"github.com/warp/revenue-share/settlement"
	"github.com/warp/revenue-share/split"
)

func TestParseRule_Percentage(t *testing.T) {
	f := factory.NewRuleFactory()
	rule, err := f.ParseRule(settlement.PercentageRuleJSON("r1", "acme", 30, "2025-01-01"))
	require.NoError(t, err)

	assert.Equal(t, split.RuleID("r1"), rule.ID)
	assert.Equal(t, split.PartnerID("acme"), rule.PartnerID)
	assert.Equal(t, split.RuleActive, rule.Status)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), rule.EffectiveFrom)
	assert.Nil(t, rule.EffectiveTo)

	p, ok := rule.Terms.(split.Percentage)
	require.True(t, ok, "terms should be Percentage, got %T", rule.Terms)
	assert.True(t, p.Rate.Equal(decimal.NewFromInt(30)))

	share, err := rule.Compute(15_000_000)
	require.NoError(t, err)
	assert.Equal(t, split.Cents(4_500_000), share)
}

func TestParseRule_MinimumGuarantee(t *testing.T) {
	f := factory.NewRuleFactory()
	rule, err := f.ParseRule(settlement.MinimumGuaranteeRuleJSON("r2", "globex", 5_000_000, 30, "2025-01-01"))
	require.NoError(t, err)

	mg, ok := rule.Terms.(split.MinimumGuarantee)
	require.True(t, ok)
	assert.Equal(t, split.Cents(5_000_000), mg.Floor)
	assert.True(t, mg.Baseline.Equal(decimal.NewFromInt(30)))

	share, err := rule.Compute(10_000_000)
	require.NoError(t, err)
	assert.Equal(t, split.Cents(5_000_000), share)
}

func TestParseRule_FractionalRateAsString(t *testing.T) {
	f := factory.NewRuleFactory()
	rule, err := f.ParseRule(`{"partner_id":"p","type":"percentage","percentage":"12.5","effective_date":"2025-02-01"}`)
	require.NoError(t, err)
	share, err := rule.Compute(10_001)
	require.NoError(t, err)
	assert.Equal(t, split.Cents(1_250), share)
}

func TestParseRule_FixedTerm(t *testing.T) {
	f := factory.NewRuleFactory()
	rule, err := f.ParseRule(settlement.FixedTermRuleJSON("r3", "acme", 40, "2025-01-01", "2025-03-31"))
	require.NoError(t, err)
	require.NotNil(t, rule.EffectiveTo)
	assert.True(t, rule.IsActiveAt(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, rule.IsActiveAt(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseRule_Rejections(t *testing.T) {
	cases := map[string]string{
		"unknown type":            `{"partner_id":"p","type":"tiered","effective_date":"2025-01-01"}`,
		"missing percentage":      `{"partner_id":"p","type":"percentage","effective_date":"2025-01-01"}`,
		"percentage above 100":    `{"partner_id":"p","type":"percentage","percentage":101,"effective_date":"2025-01-01"}`,
		"mixed fields":            `{"partner_id":"p","type":"percentage","percentage":10,"minimum_amount":5,"effective_date":"2025-01-01"}`,
		"missing minimum":         `{"partner_id":"p","type":"minimum_guarantee","effective_date":"2025-01-01"}`,
		"negative minimum":        `{"partner_id":"p","type":"minimum_guarantee","minimum_amount":-1,"effective_date":"2025-01-01"}`,
		"percentage on guarantee": `{"partner_id":"p","type":"minimum_guarantee","minimum_amount":1,"percentage":5,"effective_date":"2025-01-01"}`,
		"bad date":                `{"partner_id":"p","type":"percentage","percentage":10,"effective_date":"01/01/2025"}`,
		"end before start":        `{"partner_id":"p","type":"percentage","percentage":10,"effective_date":"2025-02-01","end_date":"2025-01-01"}`,
		"bad status":              `{"partner_id":"p","type":"percentage","percentage":10,"effective_date":"2025-01-01","status":"draft"}`,
		"missing partner":         `{"type":"percentage","percentage":10,"effective_date":"2025-01-01"}`,
		"percentage too precise":  `{"partner_id":"p","type":"percentage","percentage":"12.3456789","effective_date":"2025-01-01"}`,
		"tiny exponent":           `{"partner_id":"p","type":"percentage","percentage":1e-3000000,"effective_date":"2025-01-01"}`,
		"huge baseline exponent":  `{"partner_id":"p","type":"minimum_guarantee","minimum_amount":1,"baseline_percentage":1e3000000,"effective_date":"2025-01-01"}`,
	}
	f := factory.NewRuleFactory()
	for name, js := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParseRule(js)
			assert.ErrorIs(t, err, split.ErrValidation)
		})
	}

	_, err := f.ParseRule(`{not json`)
	assert.Error(t, err)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewRuleFactory()
	for _, js := range []string{
		settlement.PercentageRuleJSON("r1", "acme", 17.5, "2025-01-01"),
		settlement.MinimumGuaranteeRuleJSON("r2", "globex", 250_000, 0, "2025-06-01"),
		settlement.FixedTermRuleJSON("r3", "initech", 40, "2025-01-01", "2025-03-31"),
	} {
		rule, err := f.ParseRule(js)
		require.NoError(t, err)

		encoded, err := json.Marshal(f.ToJSON(rule))
		require.NoError(t, err)

		again, err := f.ParseRule(string(encoded))
		require.NoError(t, err)
		assert.Equal(t, rule.ID, again.ID)
		assert.Equal(t, rule.Terms.Type(), again.Terms.Type())
		assert.Equal(t, rule.EffectiveFrom, again.EffectiveFrom)

		for _, revenue := range []split.Cents{0, 999, 10_000_000} {
			a, err := rule.Compute(revenue)
			require.NoError(t, err)
			b, err := again.Compute(revenue)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		}
	}
}
