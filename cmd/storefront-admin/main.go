// Command storefront-admin holds operational tasks for the storefront API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var Version = "dev"

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront-admin",
		Short:         "Storefront checkout administration",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(catalogCmd())
	root.AddCommand(eventsCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
