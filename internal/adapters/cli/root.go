package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var daemonAddr string

// NewRootCommand builds the collector CLI. Every subcommand talks to a
// running daemon over its operations API.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "collector",
		Short: "Operate a running shopee-collector daemon",
		Long: `collector is the operations CLI for the shopee-collector daemon.
It triggers manual collections, inspects queues, and looks up ingested
orders over the daemon's HTTP API.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&daemonAddr, "addr", envOr("COLLECTOR_ADDR", "http://localhost:3000"),
		"daemon API address")

	root.AddCommand(newHealthCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newCollectCommand())
	root.AddCommand(newOrderCommand())
	root.AddCommand(newAuthorizeCommand())

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func client() *DaemonClient {
	return NewDaemonClient(daemonAddr)
}

// printJSON renders a response as indented JSON on stdout
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
