// briefctl inspects and maintains the on-device content cache.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/thebanglabrief/thebanglabrief/cache"
	"github.com/thebanglabrief/thebanglabrief/config"
	"github.com/thebanglabrief/thebanglabrief/quota"
	"github.com/thebanglabrief/thebanglabrief/store/leveldb"
)

// Commonly used command line flags.
var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to the YAML configuration file",
	}
	storeFlag = &cli.StringFlag{
		Name:  "store",
		Usage: "directory of the cache database (overrides the configured path)",
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
)

var app = &cli.App{
	Name:  "briefctl",
	Usage: "inspect and maintain the local content cache",
	Flags: []cli.Flag{
		configFlag,
		storeFlag,
	},
	Commands: []*cli.Command{
		commandStats,
		commandSweep,
		commandQuota,
		commandClear,
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: defaults, then the
// --config file, then the --store override.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.String(configFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dir := ctx.String(storeFlag.Name); dir != "" {
		cfg.StorePath = dir
	}
	return cfg, nil
}

// openEngine opens the configured store and builds the cache engine
// over it. The returned func closes the store.
func openEngine(cfg *config.Config) (*cache.Engine, func(), error) {
	db, err := leveldb.New(cfg.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", cfg.StorePath, err)
	}
	return cache.New(cache.Options{Store: db}), func() { db.Close() }, nil
}

// openGovernor builds the quota governor on top of the engine's
// preference store, sharing the engine as its usage sink.
func openGovernor(cfg *config.Config, e *cache.Engine) *quota.Governor {
	return quota.New(quota.Options{
		Prefs:      e,
		DailyLimit: cfg.DailyLimit,
		Usage:      e,
	})
}

func mustPrintJSON(v interface{}) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal output:", err)
		os.Exit(1)
	}
	fmt.Println(string(raw))
}
