package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"ledger/internal/app"
	"ledger/internal/config"
	"ledger/internal/date"
	"ledger/internal/db"
	"ledger/internal/jobs"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

var commands = []subcommands.Command{
	&refreshRatesCmd{},
	&processRecurringCmd{},
	&processRenewalsCmd{},
	&notifyRenewalsCmd{},
}

// withApp connects to the configured database and hands the wired services
// to fn.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) subcommands.ExitStatus {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer database.Close()

	if err := fn(ctx, app.New(cfg, database)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// parseAsOf reads an optional -as-of flag value, defaulting to today.
func parseAsOf(raw string) (date.Date, error) {
	if raw == "" {
		return date.Today(), nil
	}
	d, err := date.Parse(raw)
	if err != nil {
		return date.Date{}, fmt.Errorf("invalid -as-of %q: %w", raw, err)
	}
	return d, nil
}

func printSummary(s jobs.Summary) error {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if len(s.Failed) > 0 {
		return fmt.Errorf("%d item(s) failed", len(s.Failed))
	}
	return nil
}

func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		log.Printf("markdown renderer unavailable: %v", err)
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

type refreshRatesCmd struct{}

func (*refreshRatesCmd) Name() string     { return "refresh-rates" }
func (*refreshRatesCmd) Synopsis() string { return "fetch provider rates for every active currency" }
func (*refreshRatesCmd) Usage() string {
	return `ledgerctl refresh-rates

  Refreshes exchange rates against the default currency and reprices wallet
  base balances.
`
}

func (*refreshRatesCmd) SetFlags(*flag.FlagSet) {}

func (*refreshRatesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		updated, err := a.Jobs.RefreshRates(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("updated %d rate(s)\n", updated)
		return nil
	})
}

type processRecurringCmd struct {
	asOf string
}

func (*processRecurringCmd) Name() string { return "process-recurring" }
func (*processRecurringCmd) Synopsis() string {
	return "materialize due recurring incomes and expenses for every owner"
}
func (*processRecurringCmd) Usage() string {
	return `ledgerctl process-recurring [-as-of <date>]

  Creates one occurrence for every recurring template due on or before the
  given date.
`
}

func (c *processRecurringCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "processing date, YYYY-MM-DD (defaults to today)")
}

func (c *processRecurringCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	asOf, err := parseAsOf(c.asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		summary, err := a.Jobs.ProcessRecurring(ctx, asOf)
		if err != nil {
			return err
		}
		return printSummary(summary)
	})
}

type processRenewalsCmd struct {
	asOf string
}

func (*processRenewalsCmd) Name() string     { return "process-renewals" }
func (*processRenewalsCmd) Synopsis() string { return "bill every active subscription that is due" }
func (*processRenewalsCmd) Usage() string {
	return `ledgerctl process-renewals [-as-of <date>]

  Records an expense and advances the billing date of every active
  subscription due on or before the given date.
`
}

func (c *processRenewalsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "processing date, YYYY-MM-DD (defaults to today)")
}

func (c *processRenewalsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	asOf, err := parseAsOf(c.asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		summary, err := a.Jobs.ProcessRenewals(ctx, asOf)
		if err != nil {
			return err
		}
		return printSummary(summary)
	})
}

type notifyRenewalsCmd struct{}

func (*notifyRenewalsCmd) Name() string     { return "notify-renewals" }
func (*notifyRenewalsCmd) Synopsis() string { return "send reminders for subscriptions renewing soon" }
func (*notifyRenewalsCmd) Usage() string {
	return `ledgerctl notify-renewals

  Emails a reminder for every subscription inside its notification window
  that was not already notified today.
`
}

func (*notifyRenewalsCmd) SetFlags(*flag.FlagSet) {}

func (*notifyRenewalsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		summary, err := a.Jobs.NotifyRenewals(ctx, date.Today())
		if err != nil {
			return err
		}
		return printSummary(summary)
	})
}
