package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"racksum/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Error().Err(err).Msg("racksum failed")
		os.Exit(1)
	}
}
