package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/aymanhs/capvid/internal/cli"
)

func main() {
	// optional .env for CAPVID_* overrides
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
