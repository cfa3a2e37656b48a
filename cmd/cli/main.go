package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/hospinet/fedtrain/cli"
	"github.com/hospinet/fedtrain/pkg/sdk"
)

func main() {
	coordinatorURL := "http://localhost:9090"

	rootCmd := &cobra.Command{
		Use:   "fedtrain-cli",
		Short: "Fedtrain CLI",
		Long:  `Inspect and provision federated training sessions.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.SetFedtrainSDK(sdk.NewSDK(sdk.Config{
				CoordinatorURL: coordinatorURL,
			}))
		},
	}

	rootCmd.PersistentFlags().StringVarP(
		&coordinatorURL,
		"coordinator-url",
		"c",
		coordinatorURL,
		"Coordinator API URL",
	)

	rootCmd.AddCommand(cli.NewProvisionCmd())
	rootCmd.AddCommand(cli.NewStatusCmd())
	rootCmd.AddCommand(cli.NewNodesCmd())
	rootCmd.AddCommand(cli.NewRoundsCmd())
	rootCmd.AddCommand(cli.NewVersionsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
