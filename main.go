package main

import (
	"errors"
	"fmt"
	"os"

	"grimm.is/rtmirror/cmd"
	"grimm.is/rtmirror/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "monitor", "run":
		err = cmd.RunMonitor(os.Args[2:])
	case "show":
		err = cmd.RunShow(os.Args[2:])
	case "config":
		err = cmd.RunConfig(os.Args[2:])
	case "version":
		cmd.RunVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		// config diff reports differences through its exit code only.
		if !errors.Is(err, cmd.ErrConfigDiffers) {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", brand.BinaryName, os.Args[1], err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s - %s

Usage:
  %s <command> [options]

Commands:
  monitor   Mirror the kernel tables and serve the API and metrics (alias: run)
            Options: --config (-c) <file>, --netns <name>, --log-level <level>
  show      Print a one-shot snapshot of the route and address tables
            Options: --format (-o) table|json|yaml, --family ipv4|ipv6,
                     --timeout <duration>, --netns <name>
            Arguments: [routes|addresses]
  config    Inspect configuration
            Subcommands: show, check, diff
  version   Show version information

Examples:
  %s monitor -c /etc/%s/%s
  %s show routes -family ipv6
  %s show -o json --netns blue
  %s config check
`, brand.Name, brand.Description,
		brand.BinaryName,
		brand.BinaryName, brand.LowerName, brand.ConfigFileName,
		brand.BinaryName, brand.BinaryName, brand.BinaryName)
}
