package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	_ "time/tzdata" // market timezones without a system zoneinfo
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&positionsCmd{}, "portfolio")
	commander.Register(&fxCmd{}, "reference")
	commander.Register(&pricesCmd{}, "reference")
	commander.Register(&versionCmd{}, "")

	flag.StringVar(&configPath, "config", "", "Path to tally.toml (defaults to TALLY_CONFIG, then the binary directory).")
	flag.BoolVar(&quiet, "q", false, "Suppress the startup banner.")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
