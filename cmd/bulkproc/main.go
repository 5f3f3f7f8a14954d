package main

import (
	"fmt"
	"os"

	"github.com/bulkproc/bulkproc/internal/cli"
	"github.com/bulkproc/bulkproc/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	return cli.NewRootCmd(version.GetVersion()).Execute()
}
