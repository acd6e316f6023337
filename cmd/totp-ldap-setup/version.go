package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aakso/totp-ldap-setup/internal/globals"
)

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Show version",
	Long:              "Show version",
	Args:              cobra.NoArgs,
	ValidArgsFunction: cobra.NoFileCompletions,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), globals.Version())
		return nil
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
