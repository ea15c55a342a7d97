package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var (
	resetFlag = &cli.BoolFlag{
		Name:  "reset",
		Usage: "zero today's consumed units",
	}
	limitFlag = &cli.Int64Flag{
		Name:  "limit",
		Usage: "daily limit to report against (overrides the configured limit)",
	}
)

var commandQuota = &cli.Command{
	Name:  "quota",
	Usage: "show or reset today's quota consumption",
	Description: `
Print the governor's view of today's budget. With --reset the counter
is zeroed locally; the remote provider keeps its own ledger, so reset
only when the local counter is known to have drifted.`,
	Flags: []cli.Flag{
		resetFlag,
		limitFlag,
		jsonFlag,
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if v := ctx.Int64(limitFlag.Name); v > 0 {
			cfg.DailyLimit = v
		}
		engine, closeStore, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		gov := openGovernor(cfg, engine)

		if ctx.Bool(resetFlag.Name) {
			gov.ResetToday()
		}

		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(map[string]interface{}{
				"day":       gov.Today(),
				"used":      gov.Used(),
				"limit":     gov.Limit(),
				"remaining": gov.Remaining(),
				"state":     gov.State().String(),
			})
			return nil
		}
		fmt.Printf("day:       %s\n", gov.Today())
		fmt.Printf("used:      %d\n", gov.Used())
		fmt.Printf("limit:     %d\n", gov.Limit())
		fmt.Printf("remaining: %d\n", gov.Remaining())
		fmt.Printf("state:     %s\n", gov.State())
		return nil
	},
}
