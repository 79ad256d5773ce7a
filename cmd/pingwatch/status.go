package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/pingwatch/internal/config"
	"github.com/hazz-dev/pingwatch/internal/display"
	"github.com/hazz-dev/pingwatch/internal/logfile"
	"github.com/hazz-dev/pingwatch/internal/storage"
)

func statusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the most recent archived records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := openArchive(cfg)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("archive is disabled (storage.path is empty)")
			}
			defer db.Close()

			return executeStatus(cmd, db, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}

type statusStore interface {
	Recent(ctx context.Context, limit, offset int) ([]storage.Entry, int, error)
	Summarize(ctx context.Context, last int) (storage.Summary, error)
}

func executeStatus(cmd *cobra.Command, db statusStore, limit int) error {
	out := cmd.OutOrStdout()
	ctx := context.Background()

	entries, total, err := db.Recent(ctx, limit, 0)
	if err != nil {
		return fmt.Errorf("querying records: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No archived records. Run 'pingwatch serve' or 'pingwatch watch' first.")
		return nil
	}

	summary, err := db.Summarize(ctx, 0)
	if err != nil {
		return fmt.Errorf("summarizing records: %w", err)
	}
	fmt.Fprintf(out, "%d records archived, %.1f%% successful (showing %d)\n\n",
		total, summary.Percent, len(entries))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLAST SEEN\tLEVEL\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp,
			humanize.Time(e.Time()),
			display.LevelOf(e.Record()),
			e.Message,
		)
	}
	w.Flush()
	return nil
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Drain the log file once and print its records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			p, err := resolvePaths(cfg)
			if err != nil {
				return err
			}
			return executeDrain(cmd, logfile.NewReader(p.log))
		},
	}
}

func executeDrain(cmd *cobra.Command, d display.Drainer) error {
	var sink *display.TerminalSink
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		sink = display.NewTerminalSink(f)
	} else {
		sink = display.NewWriterSink(cmd.OutOrStdout(), false)
	}

	records, err := d.Drain()
	if err != nil {
		return fmt.Errorf("draining log file: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "log file is empty")
		return nil
	}
	for _, r := range records {
		if err := sink.Show(context.Background(), r); err != nil {
			return fmt.Errorf("printing record: %w", err)
		}
	}
	return nil
}
