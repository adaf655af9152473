package main

import (
	"os"

	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", "err", err)
		os.Exit(1)
	}
}
