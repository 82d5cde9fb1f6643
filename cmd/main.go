package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	SetVersion(version)
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
