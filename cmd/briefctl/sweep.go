package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/thebanglabrief/thebanglabrief/maintenance"
)

var maxBytesFlag = &cli.Int64Flag{
	Name:  "max-bytes",
	Usage: "size ceiling to trim down to (overrides the configured ceiling)",
}

var commandSweep = &cli.Command{
	Name:  "sweep",
	Usage: "drop expired entries and trim the cache to its size ceiling",
	Flags: []cli.Flag{
		maxBytesFlag,
		jsonFlag,
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if v := ctx.Int64(maxBytesFlag.Name); v > 0 {
			cfg.MaxCacheBytes = v
		}
		engine, closeStore, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		s := maintenance.New(maintenance.Options{
			Cache:    engine,
			Interval: cfg.SweepInterval.Std(),
			MaxBytes: cfg.MaxCacheBytes,
		})
		expired, evicted := s.Sweep()
		st := engine.Stats()

		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(map[string]interface{}{
				"expired": expired,
				"evicted": evicted,
				"entries": st.Entries,
				"bytes":   st.Bytes,
			})
			return nil
		}
		fmt.Printf("dropped %d expired, evicted %d over size; %d entries (%d bytes) remain\n",
			expired, evicted, st.Entries, st.Bytes)
		return nil
	},
}
