package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ledger/internal/app"
	"ledger/internal/date"
	"ledger/internal/report"

	"github.com/google/subcommands"
)

type reportCmd struct {
	owner string
	month int
	year  int
	xlsx  string
	raw   bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display an owner's monthly income and expense report" }
func (*reportCmd) Usage() string {
	return `ledgerctl report -owner <id> [-month n] [-year n] [-xlsx file] [-raw]

  Renders the monthly report in the terminal. With -xlsx the workbook is
  also written to the given file.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	today := date.Today()
	f.StringVar(&c.owner, "owner", "", "owner id (required)")
	f.IntVar(&c.month, "month", int(today.Month()), "month, 1-12")
	f.IntVar(&c.year, "year", today.Year(), "year")
	f.StringVar(&c.xlsx, "xlsx", "", "write the report workbook to this file")
	f.BoolVar(&c.raw, "raw", false, "print plain markdown")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.owner == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		r, err := a.Analytics.MonthlyReport(ctx, c.owner, c.month, c.year)
		if err != nil {
			return err
		}
		md := report.Markdown(r)
		if c.raw {
			fmt.Print(md)
		} else {
			printMarkdown(md)
		}
		if c.xlsx == "" {
			return nil
		}
		body, err := report.Workbook(r)
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.xlsx, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", c.xlsx, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", c.xlsx)
		return nil
	})
}
