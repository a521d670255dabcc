package main

import (
	"os"

	"github.com/outranker/qrimzn-bridge/cmd/qrimzn/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
