package cmd

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/rtmirror/internal/brand"
	"grimm.is/rtmirror/internal/config"
	"grimm.is/rtmirror/internal/host"
)

// ErrConfigDiffers is returned by "config diff" when the two files differ.
var ErrConfigDiffers = errors.New("configurations differ")

// RunConfig handles the config subcommands: show, check and diff.
func RunConfig(args []string) error {
	if len(args) < 1 {
		printConfigUsage()
		return fmt.Errorf("missing config subcommand")
	}

	switch args[0] {
	case "show":
		return runConfigShow(args[1:])
	case "check", "validate":
		return runConfigCheck(args[1:])
	case "diff":
		return runConfigDiff(args[1:])
	case "help", "-h", "--help":
		printConfigUsage()
		return nil
	default:
		printConfigUsage()
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

func printConfigUsage() {
	fmt.Fprintf(Stderr, `Usage: %s config <command> [options]

Commands:
  show [-o hcl|json] [file]   Print the effective configuration with defaults applied
  check [file]                Validate a configuration file (alias: validate)
  diff <a> [b]                Compare effective configurations (b defaults to built-in defaults)
`, brand.BinaryName)
}

// configArg returns the file named on the command line or the default path.
func configArg(flags *flag.FlagSet) string {
	if flags.NArg() > 0 {
		return flags.Arg(0)
	}
	return brand.DefaultConfigPath()
}

func runConfigShow(args []string) error {
	flags := flag.NewFlagSet("config show", flag.ExitOnError)
	output := flags.String("output", "hcl", "Output format: hcl, json")
	flags.StringVar(output, "o", "hcl", "Output format (short)")
	flags.Parse(args)

	cfg, err := config.LoadFile(configArg(flags))
	if err != nil {
		return err
	}

	switch *output {
	case "hcl":
		_, err = Stdout.Write(cfg.HCL())
		return err
	case "json":
		enc := json.NewEncoder(Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unknown output format %q", *output)
	}
}

func runConfigCheck(args []string) error {
	flags := flag.NewFlagSet("config check", flag.ExitOnError)
	flags.Parse(args)

	path := configArg(flags)
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	if errs := cfg.Validate(); errs.HasErrors() {
		for _, e := range errs {
			fmt.Fprintf(Stderr, "  %s\n", e.Error())
		}
		return fmt.Errorf("configuration invalid: %d error(s)", len(errs))
	}

	fmt.Fprintf(Stdout, "Configuration valid: %s\n", path)
	fmt.Fprintf(Stdout, "Schema Version: %s\n", cfg.SchemaVersion)
	fmt.Fprintf(Stdout, "Namespace: %s\n", orDefault(cfg.Netns, "(current)"))
	fmt.Fprintf(Stdout, "Metrics: %s\n", listenSummary(cfg.Metrics != nil && cfg.Metrics.Enabled, func() string { return cfg.Metrics.Listen }))
	fmt.Fprintf(Stdout, "API: %s\n", listenSummary(cfg.API != nil && cfg.API.Enabled, func() string { return cfg.API.Listen }))
	fmt.Fprintf(Stdout, "History: %s\n", listenSummary(cfg.History != nil && cfg.History.Enabled, func() string { return cfg.History.Path }))

	warnings, err := host.CheckPortConflicts(cfg)
	if err != nil {
		fmt.Fprintf(Stderr, "warning: %v\n", err)
	}
	for _, w := range warnings {
		fmt.Fprintln(Stderr, StyleWarn.Render("warning: "+w))
	}
	return nil
}

func runConfigDiff(args []string) error {
	flags := flag.NewFlagSet("config diff", flag.ExitOnError)
	flags.Parse(args)
	if flags.NArg() < 1 {
		return fmt.Errorf("usage: %s config diff <a> [b]", brand.BinaryName)
	}

	a, err := config.LoadFile(flags.Arg(0))
	if err != nil {
		return err
	}
	bName := "defaults"
	b := config.Default()
	if flags.NArg() > 1 {
		bName = flags.Arg(1)
		if b, err = config.LoadFile(bName); err != nil {
			return err
		}
	}

	text, err := diffConfigs(flags.Arg(0), a, bName, b)
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(Stdout, "No differences.")
		return nil
	}
	fmt.Fprint(Stdout, text)
	return ErrConfigDiffers
}

// diffConfigs returns a unified diff of the canonical HCL forms of a and b,
// or "" if they render identically.
func diffConfigs(aName string, a *config.Config, bName string, b *config.Config) (string, error) {
	ah, bh := string(a.HCL()), string(b.HCL())
	if ah == bh {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(ah),
		B:        difflib.SplitLines(bh),
		FromFile: aName,
		ToFile:   bName,
		Context:  3,
	})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func listenSummary(enabled bool, detail func() string) string {
	if !enabled {
		return "disabled"
	}
	return "enabled (" + detail() + ")"
}
