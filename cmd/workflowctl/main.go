package main

import (
	"os"

	"github.com/spec-kit/workflow-service/internal/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
