package main

import (
	"os"

	"github.com/nikiz24/monitor/v2/cmd/monitor-demo/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
