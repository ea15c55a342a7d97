package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/thebanglabrief/thebanglabrief/cache"
)

type outputStats struct {
	Store          string                 `json:"store"`
	Entries        int                    `json:"entries"`
	Bytes          int64                  `json:"bytes"`
	PerNamespace   []cache.NamespaceStats `json:"per_namespace"`
	QuotaDay       string                 `json:"quota_day"`
	QuotaUsed      int64                  `json:"quota_used"`
	QuotaRemaining int64                  `json:"quota_remaining"`
	QuotaState     string                 `json:"quota_state"`
}

var commandStats = &cli.Command{
	Name:  "stats",
	Usage: "show cache size and quota usage",
	Description: `
Print per-namespace entry counts and serialized sizes, followed by
today's quota consumption. Sizes count the stored envelope, so they
match what the size ceiling enforces.`,
	Flags: []cli.Flag{
		jsonFlag,
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		engine, closeStore, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		gov := openGovernor(cfg, engine)

		st := engine.Stats()
		out := outputStats{
			Store:          cfg.StorePath,
			Entries:        st.Entries,
			Bytes:          st.Bytes,
			PerNamespace:   st.PerNamespace,
			QuotaDay:       gov.Today(),
			QuotaUsed:      gov.Used(),
			QuotaRemaining: gov.Remaining(),
			QuotaState:     gov.State().String(),
		}
		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(out)
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Namespace", "Entries", "Bytes"})
		for _, ns := range out.PerNamespace {
			table.Append([]string{
				ns.Namespace,
				strconv.Itoa(ns.Entries),
				strconv.FormatInt(ns.Bytes, 10),
			})
		}
		table.SetFooter([]string{
			"total",
			strconv.Itoa(out.Entries),
			strconv.FormatInt(out.Bytes, 10),
		})
		table.Render()

		fmt.Printf("quota %s: used %d of %d, %d remaining (%s)\n",
			out.QuotaDay, out.QuotaUsed, cfg.DailyLimit, out.QuotaRemaining, out.QuotaState)
		return nil
	},
}
