// Command worker is the codewatch daemon. It watches a forum topic for
// promotional codes and announces each new one to the configured chat
// channels.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
