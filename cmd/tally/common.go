package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bobmcallan/tally/internal/app"
	"github.com/bobmcallan/tally/internal/common"
)

var (
	configPath string
	quiet      bool
)

// newApp loads configuration and prints the banner to stderr.
func newApp() (*app.App, error) {
	a, err := app.NewApp(configPath)
	if err != nil {
		return nil, err
	}
	if !quiet {
		common.PrintBanner(os.Stderr, a.Config, a.Logger)
	}
	return a, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(s string) (time.Time, error) {
	return app.ParseAsAt(s, time.Now())
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
}
