package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"invoicepost/internal/app"
	"invoicepost/internal/config"
	"invoicepost/internal/lists"
	"invoicepost/internal/logging"
	"invoicepost/internal/service"
)

// Set at build time via ldflags.
var version = "dev"

var (
	includePath   string
	excludePath   string
	splitCodePath string
	onlyAdminPath string
	dryRun        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "invoicepost",
		Short:         "Compute and email per-group invoices for a shared instrument facility",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run <invoice-ref>",
		Short: "Process one billing period and email each group's summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoice(args[0])
		},
	}
	runCmd.Flags().StringVarP(&includePath, "include", "i", "", "CSV file of grant codes or emails to include")
	runCmd.Flags().StringVarP(&excludePath, "exclude", "e", "", "CSV file of grant codes or emails to exclude")
	runCmd.Flags().StringVarP(&splitCodePath, "split-code", "s", "", "CSV file of compound split grant codes")
	runCmd.Flags().StringVarP(&onlyAdminPath, "only-admin", "o", "", "CSV file of group ids whose invoice goes only to the admin contact")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "render documents without sending email")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Display the application version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("invoicepost %s %s\n", version, runtime.Version())
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInvoice(invoiceRef string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	filters, err := loadFilters(cfg)
	if err != nil {
		return err
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to init invoicepost", zap.Error(err))
		return err
	}
	defer application.Close()

	input := app.RunInput{
		InvoiceRef: invoiceRef,
		Filters:    filters,
		DryRun:     dryRun,
	}
	if err := application.Run(ctx, input); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("invoice run failed", zap.Error(err))
		return err
	}
	return nil
}

// loadFilters reads the filter list files. Flags take precedence over paths
// from the config file; an absent file is an empty list.
func loadFilters(cfg *config.Config) (service.RunOptions, error) {
	var opts service.RunOptions
	var err error

	if opts.Include, err = lists.Load(pick(includePath, cfg.Lists.Include)); err != nil {
		return opts, err
	}
	if opts.Exclude, err = lists.Load(pick(excludePath, cfg.Lists.Exclude)); err != nil {
		return opts, err
	}
	if opts.SplitCodes, err = lists.Load(pick(splitCodePath, cfg.Lists.SplitCode)); err != nil {
		return opts, err
	}
	if opts.OnlyAdmin, err = lists.Load(pick(onlyAdminPath, cfg.Lists.OnlyAdmin)); err != nil {
		return opts, err
	}
	return opts, nil
}

func pick(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}
