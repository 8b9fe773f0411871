package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "godrive",
		Usage: "drive ingestion and storage engine",
		Commands: []*cli.Command{
			serveCmd,
			ingestCmd,
			migrateCmd,
		},
		DefaultCommand: serveCmd.Name,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
