package main

import (
	"fmt"
	"os"

	"github.com/oakwood-commons/dashx/cmd"
	"github.com/oakwood-commons/dashx/pkg/logger"
	"github.com/oakwood-commons/dashx/pkg/settings"
)

func main() {
	err := cmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", settings.CliBinaryName, err)
		os.Exit(1)
	}
}
