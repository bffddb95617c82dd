package main

import (
	"os"

	"github.com/finbot-dev/finbot/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
