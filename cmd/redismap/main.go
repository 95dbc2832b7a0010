package main

import (
	"os"

	"github.com/beam-cloud/redismap/pkg/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
