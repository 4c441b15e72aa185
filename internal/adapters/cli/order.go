package cli

import "github.com/spf13/cobra"

func newOrderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "order <order-number-or-id>",
		Short: "Look up an ingested order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client().GetOrder(args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}
