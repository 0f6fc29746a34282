// Command cli works with a ledger spreadsheet from the terminal, against
// Google Sheets or a local .xlsx copy.
package main

import (
	"os"
)

func main() {
	cmd := newRootCmd(os.Getenv, os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
