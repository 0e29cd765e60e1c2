package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v2"

	"grimm.is/rtmirror/internal/api"
	"grimm.is/rtmirror/internal/network"
	"grimm.is/rtmirror/internal/rtconf"
)

// snapshot is what show prints.
type snapshot struct {
	Routes    []api.RouteView   `json:"routes" yaml:"routes"`
	Addresses []api.AddressView `json:"addresses" yaml:"addresses"`
}

// RunShow builds a mirror, waits for the initial dumps and prints the
// tables once.
//
//	rtmirror show [-c config] [-format table|json|yaml] [-family ipv4|ipv6] [routes|addresses]
func RunShow(args []string) error {
	flags := flag.NewFlagSet("show", flag.ExitOnError)
	var common commonFlags
	common.register(flags)
	format := flags.String("format", "table", "Output format: table, json, yaml")
	flags.StringVar(format, "o", "table", "Output format (short)")
	timeout := flags.Duration("timeout", 5*time.Second, "How long to wait for the initial dumps")
	familyFlag := flags.String("family", "", "Only show ipv4 or ipv6 entries")
	flags.Parse(args)

	what := "all"
	if flags.NArg() > 0 {
		what = flags.Arg(0)
	}
	if err := checkShowArgs(what, *format); err != nil {
		return err
	}
	family, err := parseFamilyFlag(*familyFlag)
	if err != nil {
		return err
	}

	cfg, err := common.load(flags)
	if err != nil {
		return err
	}
	if common.logLevel == "" {
		cfg.LogLevel = "warn"
	}
	logger, closeLog, err := setupLogging(cfg, Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	mirror, err := createMirror(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to start mirror: %w", err)
	}
	defer mirror.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := mirror.WaitSynced(ctx); err != nil {
		return fmt.Errorf("initial dump did not complete: %w", err)
	}
	if st := mirror.Stats(); st.DumpErrors > 0 {
		fmt.Fprintln(Stderr, StyleWarn.Render(fmt.Sprintf("warning: %d dump(s) failed, tables may be incomplete", st.DumpErrors)))
	}

	var names api.NameResolver
	if r, err := network.NewLinkResolver(cfg.Netns); err == nil {
		defer r.Close()
		names = r
	}

	snap := snapshot{
		Routes:    api.RouteViews(filterRoutes(mirror.Routes(), family), names),
		Addresses: api.AddressViews(filterAddresses(mirror.Addresses(), family), names),
	}
	return render(Stdout, *format, what, snap)
}

func checkShowArgs(what, format string) error {
	switch what {
	case "all", "routes", "addresses":
	default:
		return fmt.Errorf("unknown table %q (expected routes or addresses)", what)
	}
	switch format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (expected table, json or yaml)", format)
	}
	return nil
}

func parseFamilyFlag(s string) (rtconf.Family, error) {
	switch s {
	case "":
		return 0, nil
	case "ipv4", "4":
		return rtconf.FamilyIPv4, nil
	case "ipv6", "6":
		return rtconf.FamilyIPv6, nil
	default:
		return 0, fmt.Errorf("unknown family %q", s)
	}
}

func filterRoutes(routes []rtconf.RouteEntry, family rtconf.Family) []rtconf.RouteEntry {
	if family == 0 {
		return routes
	}
	out := routes[:0:0]
	for _, r := range routes {
		if r.Family == family {
			out = append(out, r)
		}
	}
	return out
}

func filterAddresses(addrs []rtconf.AddressEntry, family rtconf.Family) []rtconf.AddressEntry {
	if family == 0 {
		return addrs
	}
	out := addrs[:0:0]
	for _, a := range addrs {
		if a.Family == family {
			out = append(out, a)
		}
	}
	return out
}

func render(w io.Writer, format, what string, snap snapshot) error {
	var data any = snap
	switch what {
	case "routes":
		data = snap.Routes
	case "addresses":
		data = snap.Addresses
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	if what != "addresses" {
		fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("Routes (%d)", len(snap.Routes))))
		fmt.Fprintln(w, routeTable(snap.Routes))
	}
	if what == "all" {
		fmt.Fprintln(w)
	}
	if what != "routes" {
		fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("Addresses (%d)", len(snap.Addresses))))
		fmt.Fprintln(w, addressTable(snap.Addresses))
	}
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(StyleTableBorder).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return StyleTableHeader
			}
			return StyleTableRow
		}).
		Headers(headers...)
}

func routeTable(routes []api.RouteView) string {
	t := newTable("FAMILY", "DESTINATION", "GATEWAY", "DEV", "TABLE", "SRC")
	for _, r := range routes {
		t.Row(r.Family, r.Destination, dash(r.Gateway), devName(r.Interface, r.Index), strconv.FormatUint(uint64(r.Table), 10), dash(r.Source))
	}
	return t.Render()
}

func addressTable(addrs []api.AddressView) string {
	t := newTable("FAMILY", "ADDRESS", "DEV", "BROADCAST")
	for _, a := range addrs {
		t.Row(a.Family, a.Address, devName(a.Interface, a.Index), dash(a.Broadcast))
	}
	return t.Render()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func devName(name string, index int) string {
	if name != "" {
		return name
	}
	if index == 0 {
		return "-"
	}
	return strconv.Itoa(index)
}
