package main

import (
	"fmt"
	"os"

	stepout "github.com/drand/stepout/internal/stepout-cli"
)

func main() {
	app := stepout.CLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
