package main

import (
	"fmt"
	"os"

	"github.com/example/tock-booker/internal/interfaces/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
