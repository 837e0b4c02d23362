package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "tempo",
	Short: "Tempo CLI tool runs synthetic workloads against the " +
		"cycle-accurate event scheduler.",
	Long: `Tempo CLI tool runs synthetic workloads against the ` +
		`cycle-accurate event scheduler, for benchmarking and for ` +
		`inspecting its behavior under different speed factors.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// A .env file can preset the TEMPO_* variables the subcommands
	// read as flag defaults. Missing files are fine.
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
