package cli

import "github.com/spf13/cobra"

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue depths and system info",
		RunE: func(cmd *cobra.Command, args []string) error {
			queues, err := client().QueueStatus()
			if err != nil {
				return err
			}
			system, err := client().SystemInfo()
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"queues": queues["queues"],
				"system": system,
			})
		},
	}
	return cmd
}
