package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "matchctl",
		Usage: "Offline tooling for the compute marketplace matcher",
		Commands: []*cli.Command{
			planCmd,
			explainCmd,
			completeCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}
}
