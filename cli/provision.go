package cli

import (
	"github.com/spf13/cobra"

	fedtrain "github.com/hospinet/fedtrain"
)

var configPath = "config.toml"

// NewProvisionCmd writes a starter session configuration: federation
// id, round schedule, CKKS parameters and privacy budget.
func NewProvisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision a training session",
		Long:  `Write the default session configuration file for a new federation.`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := fedtrain.DefaultConfig()
			if err := fedtrain.SaveConfig(configPath, cfg); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully wrote session config to "+configPath)
			logJSONCmd(*cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", configPath, "path of the config file to write")

	return cmd
}
