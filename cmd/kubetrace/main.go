package main

import (
	"os"

	"github.com/moolen/kubetrace/cmd/kubetrace/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
