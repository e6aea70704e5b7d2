package main

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recmatch/recmatch/internal/cli"
	"github.com/recmatch/recmatch/internal/common"
	"github.com/recmatch/recmatch/internal/config"
	"github.com/recmatch/recmatch/internal/engine"
	"github.com/recmatch/recmatch/internal/match"
)

func exportCmd() *cobra.Command {
	var accountsFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export feedless-account payments to the asset ledger",
		Long: `Appends every payment drawn on an account without a bank feed to that
account's asset CSV. Payments already exported are reported and left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, accountsFile)
		},
	}

	cmd.Flags().StringVar(&accountsFile, "accounts", "accounts.yaml", "accounts and margins file")
	return cmd
}

func runExport(cmd *cobra.Command, accountsFile string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(accountsFile)
	if err != nil {
		return err
	}

	receipts, ledger, audit, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = audit.Close() }()

	feedless := make(map[string]bool)
	for _, account := range cfg.FeedlessAccounts() {
		feedless[account.String()] = true
	}

	all, err := receipts.List(ctx)
	if err != nil {
		return err
	}

	// Feedless legs never reach an interactive branch.
	eng := engine.New(receipts, ledger, audit, cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cfg.FeedAccounts())
	margins := cfg.MatchMargins()

	var exported, duplicates int
	for _, receipt := range all {
		for _, leg := range receipt.UnlinkedLegs() {
			if !feedless[leg.Account().String()] {
				continue
			}
			result, err := eng.ResolveLeg(ctx, receipt, leg, match.NewPool(), margins)
			if errors.Is(err, common.ErrDuplicateExport) {
				duplicates++
				slog.Warn("Payment already exported",
					"receipt", receipt.Key,
					"account", leg.Account().String())
				continue
			}
			if err != nil {
				return err
			}
			if result.Outcome == engine.OutcomeExported {
				exported++
			}
		}
	}

	cmd.Printf("%s exported, %s already present\n",
		cli.SuccessStyle.Render(strconv.Itoa(exported)),
		cli.SubtleStyle.Render(strconv.Itoa(duplicates)))
	return nil
}
