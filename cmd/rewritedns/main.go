package main

import (
	"fmt"
	"os"

	"github.com/winspan/rewritedns/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rewritedns:", err)
		os.Exit(1)
	}
}
