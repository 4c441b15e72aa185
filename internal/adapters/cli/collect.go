package cli

import "github.com/spf13/cobra"

func newCollectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collect <shop>",
		Short: "Trigger a manual collection for a shop",
		Long: `Queues a high-priority collection cycle for one shop. The shop may be
referenced by its internal key or its marketplace shop id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client().Collect(args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}
