package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/tellerd"
	"pkt.systems/tellerd/banking/bankmock"
)

func newToolsListCommand() *cobra.Command {
	var authenticated bool
	var customerID string

	cmd := &cobra.Command{
		Use:   "tools-list",
		Short: "Print the canonical MCP tools/list JSON payload",
		Long: `Materializes the tool registry over in-memory transports and prints the
tools/list payload a connected platform would receive. Without flags the
pre-authentication registry is rendered; --authenticated renders the
post-PIN registry of a fixture customer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := bankmock.New()
			if err != nil {
				return err
			}
			fixturesPath := configFromViper().FixturesPath
			if fixturesPath != "" {
				if err := backend.Load(fixturesPath); err != nil {
					return err
				}
			}
			selected := ""
			if authenticated {
				selected = customerID
			}
			out, err := tellerd.BuildToolsListResponseJSON(cmd.Context(), configFromViper(), backend, selected)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&authenticated, "authenticated", false, "render the post-authentication registry")
	flags.StringVar(&customerID, "customer-id", "CUST001", "fixture customer whose entitlements shape the authenticated registry")
	return cmd
}
