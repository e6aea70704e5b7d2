package main

import (
	"github.com/spf13/cobra"

	"github.com/recmatch/recmatch/internal/cli"
	"github.com/recmatch/recmatch/internal/config"
)

func accountsCmd() *cobra.Command {
	var accountsFile string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List configured accounts and their feed status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(accountsFile)
			if err != nil {
				return err
			}

			for _, account := range cfg.Accounts {
				status := cli.SubtleStyle.Render("asset ledger")
				if account.HasFeed() {
					source := account.Feed.CSV
					if source == "" {
						source = account.Feed.OFX
					}
					status = cli.SuccessStyle.Render("feed: " + source)
				}
				cmd.Printf("%-40s %-6s %s\n",
					account.Account().String(),
					account.Currency,
					status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountsFile, "accounts", "accounts.yaml", "accounts and margins file")
	return cmd
}
