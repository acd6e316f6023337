package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aakso/totp-ldap-setup/internal/config"
)

var defaultsCmd = &cobra.Command{
	Use:               "defaults",
	Short:             "Print configuration defaults",
	Long:              `Print configuration defaults as a config file skeleton`,
	Args:              cobra.NoArgs,
	ValidArgsFunction: cobra.NoFileCompletions,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(config.GetAllDefaults())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(defaultsCmd)
}
