// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/bvk/pricebot/api"
	"github.com/bvk/pricebot/subcmds/cmdutil"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
)

type List struct {
	cmdutil.ClientFlags

	session int64
	status  bool
	jsonOut bool
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.session, "session", 0, "when non-zero, lists the watches of this chat only")
	fset.BoolVar(&c.status, "status", false, "when true, prints the monitoring state of the chats instead")
	fset.BoolVar(&c.jsonOut, "json", false, "when true, prints the response in json format")
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Lists the watches of a running pricebot service"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	if c.status {
		return c.printStatus(ctx)
	}

	req := &api.WatchListRequest{Session: c.session}
	resp, err := cmdutil.Post[api.WatchListResponse](ctx, &c.ClientFlags, api.WatchListPath, req)
	if err != nil {
		return err
	}
	if c.jsonOut {
		return printJSON(ctx, resp)
	}

	tw := tabwriter.NewWriter(cli.Stdout(ctx), 2, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "Session\tSymbol\tMin\tMax\tArmed\tCreated\n")
	for _, w := range resp.Watches {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\n", w.Session, w.Symbol, formatBound(w.Lower), formatBound(w.Upper), w.Armed, w.CreatedAt.Format(time.DateTime))
	}
	return tw.Flush()
}

func (c *List) printStatus(ctx context.Context) error {
	resp, err := cmdutil.Post[api.StatusResponse](ctx, &c.ClientFlags, api.StatusPath, &api.StatusRequest{})
	if err != nil {
		return err
	}
	if c.jsonOut {
		return printJSON(ctx, resp)
	}

	stdout := cli.Stdout(ctx)
	fmt.Fprintf(stdout, "Currency %s, poll interval %s, up since %s\n\n", resp.Currency, resp.PollInterval, resp.StartedAt.Format(time.DateTime))
	tw := tabwriter.NewWriter(stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "Session\tState\tArmed\tPending\tCycles\tLast Cycle\n")
	for _, s := range resp.Sessions {
		last := "-"
		if !s.LastCycleAt.IsZero() {
			last = s.LastCycleAt.Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n", s.Session, s.State, s.NumArmed, s.NumPending, s.Cycles, last)
	}
	return tw.Flush()
}

func printJSON(ctx context.Context, v any) error {
	enc := json.NewEncoder(cli.Stdout(ctx))
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("could not encode response: %w", err)
	}
	return nil
}

func formatBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return decimal.NewFromFloat(*v).String()
}

