package cli

import "github.com/spf13/cobra"

func newAuthorizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize <shop> <code>",
		Short: "Exchange an authorization code for shop tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client().Authorize(args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}
