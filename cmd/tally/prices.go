package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/bobmcallan/tally/internal/models"
)

type pricesCmd struct {
	date   string
	market string
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "fetch closing prices for assets on one market" }
func (*pricesCmd) Usage() string {
	return `tally prices -m <market> [-d <date>] CODE [CODE...]

  Prices each asset through the market's configured provider. Assets the
  provider cannot price are returned with a zero close, and failed batches
  are listed under "failures".
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.market, "m", "", "Market code or alias, e.g. ASX or AU.")
	f.StringVar(&c.date, "d", "", "Price date, YYYY-MM-DD (defaults to today).")
}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.market == "" || f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "a market and at least one asset code are required")
		return subcommands.ExitUsageError
	}

	date, err := parseDate(c.date)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	a, err := newApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	market, err := a.ReferenceService.Market(c.market)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	assets := make([]models.Asset, 0, f.NArg())
	for _, code := range f.Args() {
		assets = append(assets, models.Asset{Code: code, Market: market})
	}

	prices, err := a.MarketDataService.GetPrices(ctx, assets, date)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if err := printJSON(os.Stdout, prices); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
