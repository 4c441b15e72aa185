package cli

import "github.com/spf13/cobra"

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client().Health()
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}
