package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/pingwatch/internal/checker"
	"github.com/hazz-dev/pingwatch/internal/config"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a one-off check of every configured endpoint",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return runChecks(cmd.Context(), cmd.OutOrStdout(), cfg, newChecker(cfg))
}

func runChecks(ctx context.Context, out io.Writer, cfg *config.Config, c checker.Checker) error {
	if ctx == nil {
		ctx = context.Background()
	}

	outcomes := make([]checker.Outcome, len(cfg.Endpoints))
	var wg sync.WaitGroup

	for i, ep := range cfg.Endpoints {
		wg.Add(1)
		go func(i int, ep string) {
			defer wg.Done()
			outcomes[i] = c.Check(ctx, ep)
		}(i, ep)
	}
	wg.Wait()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tRESULT\tCODE\tRESPONSE\tMESSAGE")
	allOK := true
	for _, o := range outcomes {
		code := "-"
		if o.StatusCode > 0 {
			code = fmt.Sprint(o.StatusCode)
		}
		resp := "-"
		if o.ResponseTime > 0 {
			resp = o.ResponseTime.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			o.Endpoint,
			o.Kind,
			code,
			resp,
			o.Message(),
		)
		if !o.Success() {
			allOK = false
		}
	}
	w.Flush()

	if !allOK {
		return fmt.Errorf("one or more endpoints failed")
	}
	return nil
}
