package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Usage example on the command line:
// > go run ./cmd/wait-until-available --url http://localhost:8080/ --interval 5s --timeout 2m
func main() {
	var targetURL string
	var interval, timeout time.Duration
	cmd := &cobra.Command{
		Use:           "wait-until-available",
		Short:         "Poll the service until it answers with 200 OK",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return waitUntilAvailable(ctx, http.DefaultClient, targetURL, interval, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&targetURL, "url", "http://localhost:8080/", "URL that must answer with 200 OK")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "pause between two attempts")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long, 0 waits forever")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// waitUntilAvailable polls targetURL until it answers with 200 OK or ctx is done.
func waitUntilAvailable(ctx context.Context, client *http.Client, targetURL string, interval time.Duration, out io.Writer) error {
	var totalWaitTime time.Duration
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return err
		}
		res, err := client.Do(req)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				fmt.Fprintln(out, res.Status)
				return nil
			}
			fmt.Fprintln(out, res.Status)
		} else {
			fmt.Fprintln(out, err)
		}
		totalWaitTime += interval
		fmt.Fprintf(out, "Waiting %s\n", totalWaitTime)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not available: %w", targetURL, ctx.Err())
		case <-time.After(interval):
		}
	}
}
