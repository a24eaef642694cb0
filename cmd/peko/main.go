// Command peko negotiates runtime permissions against a simulated native host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-drift/peko/cmd/peko/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
