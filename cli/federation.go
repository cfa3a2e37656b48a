package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hospinet/fedtrain/pkg/sdk"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10
)

var fsdk sdk.SDK

// SetFedtrainSDK sets the coordinator SDK instance the commands use.
func SetFedtrainSDK(s sdk.SDK) {
	fsdk = s
}

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Session status",
		Long:  `View the coordinator's current round and phase.`,
		Run: func(cmd *cobra.Command, args []string) {
			status, err := fsdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, status)
		},
	}
}

func NewNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Federation nodes",
		Long:  `List the hospital nodes registered with the coordinator.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := fsdk.ListNodes(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.PersistentFlags().Uint64Var(&defOffset, "offset", defOffset, "list offset")
	cmd.PersistentFlags().Uint64Var(&defLimit, "limit", defLimit, "list limit")

	return cmd
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds",
		Short: "Round metric history",
		Long:  `List per-round aggregated metrics recorded in the ledger.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := fsdk.ListRoundMetrics(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.PersistentFlags().Uint64Var(&defOffset, "offset", defOffset, "list offset")
	cmd.PersistentFlags().Uint64Var(&defLimit, "limit", defLimit, "list limit")

	return cmd
}

func NewVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions [list|view]",
		Short: "Model versions",
		Long:  `List and view published global model versions.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List model versions",
		Long:  `List model versions.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := fsdk.ListModelVersions(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <version>",
		Short: "View model version",
		Long:  `View one model version by number.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			v, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			version, err := fsdk.GetModelVersion(v)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, version)
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(viewCmd)
	cmd.PersistentFlags().Uint64Var(&defOffset, "offset", defOffset, "list offset")
	cmd.PersistentFlags().Uint64Var(&defLimit, "limit", defLimit, "list limit")

	return cmd
}
