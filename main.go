package main

import (
	"os"

	"github.com/matt/alivelock/cmd"
	"github.com/matt/alivelock/pkg/alivelock"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		cmd.PrintError(os.Stderr, err)
	}
	alivelock.Exit(cmd.ExitCode(err))
}
