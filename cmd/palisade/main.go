package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := &cobra.Command{
		Use:     "palisade",
		Short:   "Palisade — policy gate and audit trail for agent wallet operations",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newAuditCmd(),
		newLimitsCmd(),
		newCheckCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
