// Command mkfat formats a block device (or a plain file standing in for
// one) with a fresh SimpleFAT image.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "mkfat",
		Usage: "format a device with a SimpleFAT filesystem",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "write a fresh SFAT image to a device",
				ArgsUsage: "<device>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "geometry",
						Usage: fmt.Sprintf("named device size preset (%v)", presetNames()),
						Value: "10MB",
					},
					&cli.Int64Flag{
						Name:  "size",
						Usage: "exact device size in bytes; overrides --geometry",
					},
				},
				Action: runFormat,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mkfat:", err)
		os.Exit(1)
	}
}

func runFormat(c *cli.Context) error {
	device := c.Args().First()
	if device == "" {
		return cli.Exit("missing <device> argument", 1)
	}

	size := c.Int64("size")
	if size == 0 {
		name := c.String("geometry")
		preset, ok := lookupPreset(name)
		if !ok {
			return cli.Exit(fmt.Sprintf("unknown geometry %q; known presets: %v", name, presetNames()), 1)
		}
		size = preset.TotalBytes
	}

	if err := Format(device, size); err != nil {
		return cli.Exit(fmt.Sprintf("format failed: %v", err), 1)
	}
	fmt.Printf("formatted %s (%d bytes)\n", device, size)
	return nil
}
