package main

import (
	"os"

	"github.com/eternnoir/mediascribe/cmd/mediascribe/cmd"
	"github.com/eternnoir/mediascribe/pkg/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("Application execution failed")
		os.Exit(1)
	}
}
