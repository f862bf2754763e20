package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/warp/revenue-share/factory"
	"github.com/warp/revenue-share/split"
)

// =============================================================================
// SHARE
// =============================================================================

type shareCmd struct {
	revenue  int64
	typ      string
	rate     string
	floor    int64
	currency string
}

func (*shareCmd) Name() string     { return "share" }
func (*shareCmd) Synopsis() string { return "compute a partner's share of revenue" }
func (*shareCmd) Usage() string {
	return `splitctl share -revenue <cents> [-type percentage|minimum_guarantee] [-rate <pct>] [-floor <cents>]

  Computes the partner share for one period's revenue. Amounts are in cents.
`
}

func (c *shareCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.revenue, "revenue", 0, "Gross revenue in cents")
	f.StringVar(&c.typ, "type", string(split.SplitPercentage), "Split type (percentage, minimum_guarantee)")
	f.StringVar(&c.rate, "rate", "", "Percentage, or baseline percentage for minimum_guarantee (e.g. 12.5)")
	f.Int64Var(&c.floor, "floor", 0, "Minimum guarantee in cents")
	f.StringVar(&c.currency, "currency", "USD", "Currency for display")
}

func (c *shareCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	terms, err := c.terms()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	share, err := split.Breakdown(split.Cents(c.revenue), terms)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printShare(os.Stdout, split.Cents(c.revenue), share, strings.ToUpper(c.currency))
	return subcommands.ExitSuccess
}

func (c *shareCmd) terms() (split.Terms, error) {
	rj := factory.RuleJSON{Type: c.typ}
	if c.rate != "" {
		rate, err := decimal.NewFromString(c.rate)
		if err != nil {
			return nil, fmt.Errorf("invalid -rate %q: %w", c.rate, err)
		}
		if c.typ == string(split.SplitMinimumGuarantee) {
			rj.BaselinePercentage = &rate
		} else {
			rj.Percentage = &rate
		}
	}
	if c.typ == string(split.SplitMinimumGuarantee) {
		rj.MinimumAmount = &c.floor
	}
	return factory.NewRuleFactory().TermsFromJSON(rj)
}

func printShare(w io.Writer, revenue split.Cents, s split.PartnerShare, currency string) {
	fmt.Fprintf(w, "Revenue:       %s\n", revenue.Format(currency))
	fmt.Fprintf(w, "Revenue share: %s\n", s.RevenueShare.Format(currency))
	if s.MinimumGuarantee > 0 {
		fmt.Fprintf(w, "Guarantee:     %s\n", s.MinimumGuarantee.Format(currency))
	}
	fmt.Fprintf(w, "Partner share: %s", s.ActualShare.Format(currency))
	if s.GuaranteeApplied() {
		fmt.Fprint(w, " (guarantee applied)")
	}
	fmt.Fprintln(w)
}

// =============================================================================
// SETTLE
// =============================================================================

type settleCmd struct {
	base     int64
	currency string
}

func (*settleCmd) Name() string     { return "settle" }
func (*settleCmd) Synopsis() string { return "apply adjustments to a base share" }
func (*settleCmd) Usage() string {
	return `splitctl settle -base <cents> <type>:<cents>...

  Replays adjustments in order. Types: increase, decrease, override.
  Fails if the running total drops below zero.
`
}

func (c *settleCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.base, "base", 0, "Base share in cents")
	f.StringVar(&c.currency, "currency", "USD", "Currency for display")
}

func (c *settleCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	adjs, err := parseAdjustments(f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	s, err := split.Settle(split.Cents(c.base), adjs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	currency := strings.ToUpper(c.currency)
	fmt.Printf("Base:   %s\n", s.BaseShare.Format(currency))
	fmt.Printf("Delta:  %s\n", s.AdjustmentDelta.Format(currency))
	fmt.Printf("Final:  %s\n", s.FinalShare.Format(currency))
	return subcommands.ExitSuccess
}

// parseAdjustments reads "increase:500000" style arguments.
func parseAdjustments(args []string) ([]split.Adjustment, error) {
	adjs := make([]split.Adjustment, 0, len(args))
	for i, arg := range args {
		typ, amount, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("adjustment %q: want <type>:<cents>", arg)
		}
		cents, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("adjustment %q: %w", arg, err)
		}
		adjs = append(adjs, split.Adjustment{
			Seq:    i + 1,
			Type:   split.AdjustmentType(typ),
			Amount: split.Cents(cents),
		})
	}
	return adjs, nil
}
