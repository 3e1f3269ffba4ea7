// Package main provides the entry point for the CV Tailor HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cv_tailor",
	Short: "CV Tailor generation server",
	Long:  "CV Tailor adapts a candidate's CV to specific job postings, running extraction, classification, parallel section batches, summary and recomposition against an inference provider.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
