// Command visiond runs the vision and image-generation gateway together with
// the orchestrator that starts, stops and budgets its model workers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "visiond:", err)
		os.Exit(1)
	}
}
