// Command tenantstore is an operator CLI over a tenant-scoped document
// store: health checks, counts, paged reads, CSV exports and aggregation
// reports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
