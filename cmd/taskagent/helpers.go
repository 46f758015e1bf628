package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/logging"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
)

// exitOnError reports err on stderr and exits. Confinement failures get
// their own exit code so scripts can tell them apart.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
	logSync()
	if operation.IsConfinement(err) {
		os.Exit(3)
	}
	os.Exit(1)
}

func logSync() {
	logging.Sync()
}
