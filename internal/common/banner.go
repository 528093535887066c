package common

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the CLI banner with the effective configuration to w.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 56
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	providers := make([]string, 0, len(config.MarketData.Providers))
	for id := range config.MarketData.Providers {
		providers = append(providers, id)
	}
	sort.Strings(providers)

	fmt.Fprintf(w, "%s\n", hr)
	fmt.Fprintf(w, "%s  tally  %s%s\n", textColor, "positions, fx and prices", banner.ColorReset)
	fmt.Fprintf(w, "%s\n", hr)

	kvPad := 14
	kvLines := [][2]string{
		{"Version", GetVersion()},
		{"Commit", GetGitCommit()},
		{"Environment", config.Environment},
		{"FX anchor", config.FX.Anchor},
		{"Ignore rates", fmt.Sprintf("%t", config.FX.IgnoreRates)},
		{"Providers", strings.Join(providers, ", ")},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "%s\n", hr)

	logger.Debug().
		Str("version", GetVersion()).
		Str("environment", config.Environment).
		Str("fx_anchor", config.FX.Anchor).
		Strs("providers", providers).
		Msg("Configuration loaded")
}
