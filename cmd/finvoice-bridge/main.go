package main

import (
	"fmt"
	"os"

	"github.com/rezonia/finvoice-bridge/cmd/finvoice-bridge/cmd"
	"github.com/rezonia/finvoice-bridge/internal/config"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading .env: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
