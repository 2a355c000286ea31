package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"nbx/pkg/config"
	"nbx/pkg/nbx"
)

const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
	exitUsage    = 64
)

const usageText = `nbx.com cli interface

Usage: nbx [flags] <command>

Commands:
  account balance <ASSET>              get account balance
  order new <SIDE> <TICKER> <AMOUNT>   place new market order (SIDE is BUY or SELL;
                                       AMOUNT is fiat for BUY, units for SELL)
  order details [ORDER_ID]             print fill details (default: last order)
  order list                           list recent orders

Flags:
`

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("nbx", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usageText)
		flags.PrintDefaults()
	}

	configPath := flags.String("config", config.DefaultPath, "Path to config file (.toml, .yaml or .json)")
	flags.StringVar(configPath, "c", config.DefaultPath, "Shorthand for -config")
	logLevel := flags.String("log-level", "warn", "Log level: debug, info, warn, error")
	timeout := flags.Duration("timeout", 0, "Deadline for the whole command (0 = none)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(stderr, "invalid -log-level %q\n", *logLevel)
		return exitUsage
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cmd, err := parseCommand(flags.Args())
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
		}
		flags.Usage()
		return exitUsage
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("LoadDotEnv", "err", err)
		return exitError
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	slog.Debug("config loaded", "credential", cfg.Credential, "baseURL", cfg.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	client := nbx.NewClient(cfg.Credential, nbx.WithBaseURL(cfg.BaseURL), nbx.WithLogger(logger))
	slog.Debug("run", "command", cmd.name)

	token, err := client.IssueToken(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: unable to obtain token: %v\n", err)
		return exitError
	}

	code, err := cmd.exec(ctx, client, token, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return code
}

type command struct {
	name string
	exec func(ctx context.Context, client *nbx.Client, token nbx.BearerToken, out io.Writer) (int, error)
}

func parseCommand(args []string) (*command, error) {
	if len(args) < 2 {
		return nil, errUsage
	}

	switch args[0] + " " + args[1] {
	case "account balance":
		if len(args) != 3 {
			return nil, fmt.Errorf("account balance: expected <ASSET>")
		}
		asset := args[2]
		return &command{name: "account balance", exec: func(ctx context.Context, client *nbx.Client, token nbx.BearerToken, out io.Writer) (int, error) {
			balance, err := client.Balance(ctx, token, asset)
			if err != nil {
				return exitError, err
			}
			fmt.Fprintln(out, balance.String())
			return exitOK, nil
		}}, nil

	case "order new":
		if len(args) != 5 {
			return nil, fmt.Errorf("order new: expected <SIDE> <TICKER> <AMOUNT>")
		}
		side, err := nbx.ParseSide(args[2])
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(args[4])
		if err != nil {
			return nil, fmt.Errorf("order new: invalid amount %q: %w", args[4], err)
		}
		order := nbx.OrderRequest{Side: side, Ticker: strings.TrimSpace(args[3]), Amount: amount}
		return &command{name: "order new", exec: func(ctx context.Context, client *nbx.Client, token nbx.BearerToken, out io.Writer) (int, error) {
			return newOrder(ctx, client, token, order, out)
		}}, nil

	case "order details":
		if len(args) > 3 {
			return nil, fmt.Errorf("order details: expected at most one ORDER_ID")
		}
		var orderID string
		if len(args) == 3 {
			orderID = args[2]
		}
		return &command{name: "order details", exec: func(ctx context.Context, client *nbx.Client, token nbx.BearerToken, out io.Writer) (int, error) {
			var fill *nbx.OrderFill
			var err error
			if orderID == "" {
				fill, err = client.LastOrderDetails(ctx, token)
			} else {
				fill, err = client.OrderDetails(ctx, token, orderID)
			}
			if err != nil {
				return exitError, err
			}
			printFill(out, fill)
			return exitOK, nil
		}}, nil

	case "order list":
		if len(args) != 2 {
			return nil, fmt.Errorf("order list: takes no arguments")
		}
		return &command{name: "order list", exec: func(ctx context.Context, client *nbx.Client, token nbx.BearerToken, out io.Writer) (int, error) {
			orders, err := client.ListOrders(ctx, token)
			if err != nil {
				return exitError, err
			}
			for _, o := range orders {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", o.ID, o.Market, o.Side, o.Status)
			}
			return exitOK, nil
		}}, nil
	}

	return nil, fmt.Errorf("unknown command %q", strings.Join(args[:2], " "))
}

func newOrder(ctx context.Context, client *nbx.Client, token nbx.BearerToken, order nbx.OrderRequest, out io.Writer) (int, error) {
	fmt.Fprintf(out, "Create new order: Side: %s, Ticker: %s, Amount: %s\n", order.Side, order.Ticker, order.Amount)

	start := time.Now()
	outcome, err := client.CreateOrder(ctx, token, order)
	if err != nil {
		return exitError, err
	}
	slog.Info("CreateOrder", "outcome", outcome.Status, "status", outcome.StatusCode, "elapsed", time.Since(start))

	if !outcome.Accepted() {
		fmt.Fprintf(out, "Failed to create order (status %d). Response: %s\n", outcome.StatusCode, outcome.Body)
		return exitRejected, nil
	}
	fmt.Fprintln(out, "Order created successfully")
	return exitOK, nil
}

func printFill(out io.Writer, fill *nbx.OrderFill) {
	fmt.Fprintf(out, "Order:    %s\n", fill.OrderID)
	fmt.Fprintf(out, "Created:  %s\n", fill.Created)
	fmt.Fprintf(out, "Price:    %s\n", fill.Price)
	fmt.Fprintf(out, "Quantity: %s\n", fill.Quantity)
	fmt.Fprintf(out, "Fee:      %s\n", fill.Fee)
	fmt.Fprintf(out, "Cost:     %s\n", fill.Cost)
}
