// Command schedctl is the operator CLI: it mints development bearer tokens
// and previews due-date projections without a running server.
package main

import (
	"os"

	"github.com/personalfinance/finance/backend/go-scheduler/cmd/schedctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
