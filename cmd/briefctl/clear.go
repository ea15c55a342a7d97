package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

var (
	namespaceFlag = &cli.StringFlag{
		Name:  "namespace",
		Usage: "content namespace to clear (defaults to \"general\")",
	}
	allFlag = &cli.BoolFlag{
		Name:  "all",
		Usage: "clear every content namespace",
	}
)

var commandClear = &cli.Command{
	Name:  "clear",
	Usage: "drop cached content",
	Description: `
Remove cached entries from one content namespace, or from all of them
with --all. Preferences and quota counters are never touched.`,
	Flags: []cli.Flag{
		namespaceFlag,
		allFlag,
	},
	Action: func(ctx *cli.Context) error {
		if ctx.Bool(allFlag.Name) && ctx.IsSet(namespaceFlag.Name) {
			return errors.New("--all and --namespace are mutually exclusive")
		}
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		engine, closeStore, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		if ctx.Bool(allFlag.Name) {
			engine.ClearContent()
			fmt.Println("cleared all content namespaces")
			return nil
		}
		ns := ctx.String(namespaceFlag.Name)
		if err := engine.Clear(ns); err != nil {
			return err
		}
		if ns == "" {
			ns = "general"
		}
		fmt.Printf("cleared namespace %q\n", ns)
		return nil
	},
}
