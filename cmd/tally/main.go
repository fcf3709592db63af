package main

import (
	"os"

	"github.com/davidahmann/tally/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
