package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "ragctl",
		Short:        "Operator CLI for the support portal knowledge base",
		Long:         "Ask questions against the configured corpus, seed knowledge articles and tail answer events without starting the HTTP server.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createAskCommand())
	rootCmd.AddCommand(createSeedCommand())
	rootCmd.AddCommand(createEventsCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
