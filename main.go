package main

import (
	"os"

	"moochat/cli"
)

const Version = "v0.1.0"

func main() {
	// cobra has already printed the error
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
