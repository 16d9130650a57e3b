// Package main is the entry point for the scenevault application.
package main

import (
	"os"

	"github.com/scenevault/scenevault/cmd/scenevault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
