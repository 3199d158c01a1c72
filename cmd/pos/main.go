package main

import (
	"os"

	"github.com/linzen78111/pos2/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
