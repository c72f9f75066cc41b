package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/finvoice-bridge/internal/lifecycle"
	"github.com/rezonia/finvoice-bridge/internal/processor"
)

var (
	runProfile  string
	runParallel int
	runDays     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send pending invoices and import received ones",
	Long: `Run the outbound pass then the inbound pass for each enabled profile.

Outbound: Odoo invoices in the "sending" state are rendered as Finvoice,
uploaded to Maventa, and their delivery status is polled on later runs.
Inbound: invoices received by Maventa during the last --days days are
created as Odoo vendor bills unless they already exist.

Examples:
  finvoice-bridge run
  finvoice-bridge run --profile acme
  finvoice-bridge run --parallel 4 -f table`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runProfile, "profile", "", "Run only this profile, even if disabled")
	runCmd.Flags().IntVar(&runParallel, "parallel", 0, "Profiles to run at once (default from config)")
	runCmd.Flags().IntVar(&runDays, "days", 0, "Inbound window in days (default from profile)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := processor.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	runner := processor.NewRunner(cfg,
		processor.WithParallel(runParallel),
		processor.WithPipelineOptions(stores.PipelineOptions()...),
	)

	var (
		results []*processor.Result
		runErr  error
	)
	if runProfile != "" {
		printVerbose("Running profile %s\n", runProfile)
		var res *processor.Result
		res, runErr = runner.RunProfile(ctx, runProfile, runDays)
		if res != nil {
			results = append(results, res)
		}
	} else {
		printVerbose("Running %d enabled profiles\n", len(cfg.Enabled()))
		results, runErr = runner.RunAll(ctx, runDays)
	}

	if err := outputRunResults(os.Stdout, results); err != nil {
		return err
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return ctx.Err()
}

func outputRunResults(w io.Writer, results []*processor.Result) error {
	switch outputFormat {
	case "json":
		return writeJSON(w, results)
	case "table":
		return runTable(w, results)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func runTable(w io.Writer, results []*processor.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tSENT\tCONFIRMED\tPENDING\tOUT FAILED\tCREATED\tDUPLICATES\tIN FAILED\tDURATION")
	fmt.Fprintln(tw, "-------\t----\t---------\t-------\t----------\t-------\t----------\t---------\t--------")

	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\t\t%s\n", r.Profile, r.Error, r.Duration)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Profile,
			r.Outbound.Count(lifecycle.KindUploaded),
			r.Outbound.Count(lifecycle.KindConfirmed),
			r.Outbound.Count(lifecycle.KindPending),
			r.Outbound.Failed,
			r.Inbound.Count(lifecycle.KindCreated),
			r.Inbound.Count(lifecycle.KindDuplicateSkip),
			r.Inbound.Failed,
			r.Duration,
		)
	}
	return tw.Flush()
}
