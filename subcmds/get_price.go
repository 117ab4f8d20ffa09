// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/bvk/pricebot/coinmarketcap"
	"github.com/bvk/pricebot/subcmds/cmdutil"
	"github.com/bvk/pricebot/watch"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
)

type GetPrice struct {
	cmdutil.ServerFlags
}

func (c *GetPrice) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("get-price", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	return "get-price", fset, cli.CmdFunc(c.run)
}

func (c *GetPrice) Purpose() string {
	return "Prints the current price of ticker symbols from coinmarketcap"
}

func (c *GetPrice) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("this command takes one or more ticker symbol arguments")
	}
	cfg, err := c.ServerFlags.Config()
	if err != nil {
		return err
	}
	client, err := coinmarketcap.New(cfg.CoinMarketCap.APIKey, cfg.Currency, coinmarketcap.WithBaseURL(cfg.CoinMarketCap.BaseURL))
	if err != nil {
		return err
	}

	stdout := cli.Stdout(ctx)
	var errs []error
	for _, arg := range args {
		symbol, err := watch.NormalizeSymbol(arg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%q: %w", arg, err))
			continue
		}
		price, err := client.Fetch(ctx, symbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		fmt.Fprintf(stdout, "%s %s %s\n", symbol, decimal.NewFromFloat(price).String(), strings.ToUpper(client.Currency()))
	}
	return errors.Join(errs...)
}
