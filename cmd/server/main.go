// Package main is the entry point for the concept hierarchy server. It serves
// the concept tree and mind-map layout API over HTTP and manages the
// database schema.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
