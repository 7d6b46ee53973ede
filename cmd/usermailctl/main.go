package main

import (
	"os"

	"github.com/notifyhub/user-mail-queue/internal/cli"
)

func main() {
	root := cli.NewRootCommand(cli.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
