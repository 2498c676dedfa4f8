package main

import (
	"os"

	"github.com/wms-platform/picking-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
