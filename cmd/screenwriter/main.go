package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var envFile string

	root := &cobra.Command{
		Use:     "screenwriter",
		Short:   "Screenwriting assistant: generation gateway and continuity analyzer",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// a missing .env is fine
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env") {
				fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")

	root.AddCommand(
		newServeCmd(),
		newAnalyzeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
