package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/bobmcallan/tally/internal/app"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

type positionsCmd struct {
	input       string
	value       bool
	ignoreRates bool
	format      string
}

func (*positionsCmd) Name() string { return "positions" }
func (*positionsCmd) Synopsis() string {
	return "replay transactions into positions and optionally value them"
}
func (*positionsCmd) Usage() string {
	return `tally positions [-in <file>] [-value] [-ignore-rates] [-format json|text]

  Reads one portfolio document, or an array of them, as JSON and replays
  each portfolio's transactions in order. Portfolios are processed
  concurrently and a failure in one does not affect the others.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.input, "in", "-", "Portfolio JSON file, or - for stdin.")
	f.BoolVar(&c.value, "value", true, "Price positions and compute market values.")
	f.BoolVar(&c.ignoreRates, "ignore-rates", false, "Discard FX rates supplied on transactions and look them all up.")
	f.StringVar(&c.format, "format", "json", "Output format: json or text.")
}

type positionsOutput struct {
	Portfolio models.Portfolio  `json:"portfolio"`
	Positions *models.Positions `json:"positions,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (c *positionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	docs, err := app.LoadPortfolioDocuments(c.input)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	a, err := newApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	rc := &common.RequestContext{}
	if c.ignoreRates {
		rc.IgnoreRates = &c.ignoreRates
	}
	ctx = common.WithRequestContext(ctx, rc)

	results := a.ValueDocuments(ctx, docs, c.value)

	status := subcommands.ExitSuccess
	out := make([]positionsOutput, len(results))
	for i, res := range results {
		out[i] = positionsOutput{Portfolio: res.Portfolio, Positions: res.Positions}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
			status = subcommands.ExitFailure
			a.Logger.Error().Err(res.Err).Str("portfolio", res.Portfolio.Code).Str("request_id", rc.RequestID).Msg("Portfolio failed")
		}
	}

	if c.format == "text" {
		writePositionsText(os.Stdout, out)
		return status
	}
	if err := printJSON(os.Stdout, out); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return status
}

// writePositionsText prints one line per position in the portfolio bucket.
func writePositionsText(w io.Writer, out []positionsOutput) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	defer tw.Flush()

	for _, o := range out {
		fmt.Fprintf(tw, "%s\t%s\t\t\t\t\n", o.Portfolio.Code, o.Error)
		if o.Positions == nil {
			continue
		}
		fmt.Fprintln(tw, "asset\tquantity\tcost basis\tmarket value\tunrealised\trealised\t")
		for _, asset := range o.Positions.Assets() {
			pos := o.Positions.Positions[asset.Key()]
			mv := pos.Money(models.BucketPortfolio)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
				asset.Key(),
				pos.QuantityValues.Total().String(),
				common.FormatMoney(mv.CostBasis, mv.Currency),
				common.FormatMoney(mv.MarketValue, mv.Currency),
				common.FormatMoney(mv.UnrealisedGain, mv.Currency),
				common.FormatMoney(mv.RealisedGain, mv.Currency),
			)
		}
	}
}
