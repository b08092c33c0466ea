package main

import (
	"os"

	aonacmder "github.com/aona-labs/aona/cmd/aona"
)

func main() {
	cmd := aonacmder.NewAonaCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
