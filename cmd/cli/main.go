package main

import (
	"os"

	"github.com/blobbridge/blobbridge/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
