package main

import (
	"github.com/s3mockd/s3mockd/cmd/s3mockd/cli"
)

func main() {
	cli.ParseFlags()

	if cli.Flags.ShowVersion {
		cli.ShowVersion()
		return
	}

	cli.CreateEngine()
	cli.PrepareGreeting()
	cli.Serve()
}
