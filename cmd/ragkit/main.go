// Command ragkit indexes documents and answers questions from them.
package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/ragkit/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("loading .env: %v", err)
	}

	cli.SetVersion(version)
	cli.SetBootstrap(wire)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
