package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		exitWithError(err)
	}
}

// exitWithError reports the failure and exits nonzero. Cancellation is not
// printed; the interrupted command already logged where it stopped.
func exitWithError(err error) {
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "narrator: %v\n", err)
	}
	os.Exit(1)
}
