package main

import (
	"os"

	"github.com/pdxmph/contacts/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
