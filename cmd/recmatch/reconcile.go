package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/recmatch/recmatch/internal/cli"
	"github.com/recmatch/recmatch/internal/config"
	"github.com/recmatch/recmatch/internal/engine"
)

func reconcileCmd() *cobra.Command {
	var accountsFile string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match receipt payments against bank feeds",
		Long: `Runs the resolution state machine over every receipt: unambiguous
matches are linked automatically, feedless payments go to the asset ledger,
and ambiguous cases are escalated to you interactively.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, accountsFile)
		},
	}

	cmd.Flags().StringVar(&accountsFile, "accounts", "accounts.yaml", "accounts and margins file")
	return cmd
}

func runReconcile(cmd *cobra.Command, accountsFile string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(accountsFile)
	if err != nil {
		return err
	}

	pool, err := buildPool(cfg)
	if err != nil {
		return err
	}

	receipts, ledger, audit, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = audit.Close() }()

	all, err := receipts.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		cmd.Println("No receipts to reconcile.")
		return nil
	}

	bar := progressbar.NewOptions(len(all),
		progressbar.OptionSetDescription("Reconciling receipts"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionClearOnFinish(),
	)

	eng := engine.New(receipts, ledger, audit, cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cfg.FeedAccounts())
	results, err := eng.ReconcileAll(ctx, pool, cfg.MatchMargins(), func() { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("reconciliation aborted: %w", err)
	}

	var linked, exported, skipped int
	for _, r := range results {
		switch r.Outcome {
		case engine.OutcomeLinked:
			linked++
		case engine.OutcomeExported:
			exported++
		case engine.OutcomeSkipped:
			skipped++
		}
	}
	cmd.Printf("%s linked, %s exported, %s left unresolved\n",
		cli.SuccessStyle.Render(fmt.Sprintf("%d", linked)),
		cli.SuccessStyle.Render(fmt.Sprintf("%d", exported)),
		cli.WarningStyle.Render(fmt.Sprintf("%d", skipped)))
	return nil
}
