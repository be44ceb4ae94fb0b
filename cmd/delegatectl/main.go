// Command delegatectl runs dashboard operations against the local backends.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"delegate/api/internal/app"
	"delegate/api/internal/config"
	"delegate/api/internal/identity"
	"delegate/api/internal/logger"
)

var (
	walletFlag string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:           "delegatectl",
		Short:         "Inspect DAOs, digests and local preferences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// withService builds a Service from the environment, runs fn and releases
// the backends.
func withService(ctx context.Context, fn func(*app.Service) error) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger.SetLevel(level)

	svc, closeBackends, err := app.Build(ctx, cfg, logger.NewWithWriter("delegatectl", os.Stderr))
	if err != nil {
		return err
	}
	defer closeBackends()
	return fn(svc)
}

// wallet returns the normalised --wallet flag; "" is the anonymous identity.
func wallet() (string, error) {
	if walletFlag == "" {
		return "", nil
	}
	return identity.Normalize(walletFlag)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&walletFlag, "wallet", "w", "", "Wallet address whose preferences are used")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
