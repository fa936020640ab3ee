// Command datatable reads and writes signed table rows in the configured
// store, and can serve a local sandbox of the remote store API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
