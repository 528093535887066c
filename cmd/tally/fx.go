package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/bobmcallan/tally/internal/models"
)

type fxCmd struct {
	date string
}

func (*fxCmd) Name() string     { return "fx" }
func (*fxCmd) Synopsis() string { return "resolve FX rates for currency pairs" }
func (*fxCmd) Usage() string {
	return `tally fx [-d <date>] FROM:TO [FROM:TO...]

  Resolves each pair through the configured rate source as at the date.
  Dates with no published rates fall back to the nearest earlier table.
`
}

func (c *fxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Rate date, YYYY-MM-DD (defaults to today).")
}

func (c *fxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one FROM:TO pair is required")
		return subcommands.ExitUsageError
	}

	var pairs []models.CurrencyPair
	for _, arg := range f.Args() {
		pair, ok := models.ParseCurrencyPair(arg)
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid pair %q\n", arg)
			return subcommands.ExitUsageError
		}
		pairs = append(pairs, pair)
	}

	asAt, err := parseDate(c.date)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	a, err := newApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	rates, err := a.FxService.GetRates(ctx, asAt, pairs)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if err := printJSON(os.Stdout, rates.List()); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
