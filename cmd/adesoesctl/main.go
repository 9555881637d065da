package main

import (
	"os"

	"github.com/guaruja-saneamento/adesoes/cmd/adesoesctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
