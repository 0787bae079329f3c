package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/listingest/internal/cli"
)

func main() {
	// A missing .env is fine; configuration then comes from the environment.
	_ = godotenv.Overload()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
