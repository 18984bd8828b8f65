// Package main is the entry point for statement-sync CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/bank-statement-sync/cmd/statement-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
