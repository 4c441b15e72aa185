package main

import (
	"os"

	"github.com/tomsync/shopee-collector/internal/adapters/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
