package main

import (
	"os"

	"github.com/dvloznov/bank-sync/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
