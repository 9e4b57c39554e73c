package main

import (
	"os"

	"github.com/quantfeed/marketpulse/cmd/pulse/commands"
)

// main is the entry point for the MarketPulse CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
