package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-tailor/internal/config"
	"github.com/jonathan/cv-tailor/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the generation API server",
	Long:  `Start an HTTP server that exposes endpoints for launching, cancelling and observing CV generation tasks.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	a, err := buildApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.New(server.Config{Port: cfg.Port}, a.store, a.runner, a.hub, a.log)
	return srv.Start()
}
