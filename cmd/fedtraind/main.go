package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/hospinet/fedtrain/fedtraind"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fedtraind",
		Short: "Fedtrain Daemon",
		Long:  `Fedtrain Daemon manages the lifecycle of federation components.`,
	}

	rootCmd.AddCommand(fedtraind.NewCoordinatorCmd())
	rootCmd.AddCommand(fedtraind.NewNodeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
