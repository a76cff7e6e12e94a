package main

import (
	"os"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
