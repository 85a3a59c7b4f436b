// Command sfatcheck mounts a SimpleFAT image read-only and validates it
// against the core's invariants, reporting every violation it finds.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/sfatfs/sfat"
	"github.com/sfatfs/sfat/fsck"
)

func main() {
	app := &cli.App{
		Name:      "sfatcheck",
		Usage:     "validate a SimpleFAT image",
		ArgsUsage: "<device>",
		Action:    runCheck,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sfatcheck:", err)
		os.Exit(1)
	}
}

func runCheck(c *cli.Context) error {
	device := c.Args().First()
	if device == "" {
		return cli.Exit("missing <device> argument", 1)
	}

	f, err := os.Open(device)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open %s: %v", device, err), 1)
	}
	defer f.Close()

	vol, err := sfat.Mount(f, 512, epochNow)
	if err != nil {
		return cli.Exit(fmt.Sprintf("mount %s: %v", device, err), 1)
	}

	if err := fsck.Check(vol); err != nil {
		if merr, ok := err.(*multierror.Error); ok {
			for _, e := range merr.Errors {
				fmt.Fprintln(os.Stderr, e)
			}
			return cli.Exit(fmt.Sprintf("%d invariant violation(s) found", len(merr.Errors)), 1)
		}
		return cli.Exit(err.Error(), 1)
	}

	fmt.Println("ok")
	return nil
}
