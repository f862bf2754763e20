/*
main.go - Offline revenue share calculator

PURPOSE:
  Runs the split engine from the command line without a server or
  database. Useful for checking a contract's numbers before registering
  the rule.

COMMANDS:
  share   Compute a partner's share of a revenue amount
  settle  Apply adjustments to a base share

EXAMPLES:
  splitctl share -revenue 15000000 -rate 30
  splitctl share -revenue 10000000 -type minimum_guarantee -floor 5000000 -rate 30
  splitctl settle -base 4500000 increase:500000 decrease:125000 override:4000000

SEE ALSO:
  - split/calculator.go: ComputeShare, Settle
*/
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&shareCmd{}, "")
	commander.Register(&settleCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
