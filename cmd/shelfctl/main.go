// Package main implements shelfctl, a command-line client for the Shelfwise
// library server. It speaks the framed JSON socket protocol directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise-server/internal/client"
)

var (
	serverAddr  string
	sessionPath string
)

func main() {
	root := &cobra.Command{
		Use:           "shelfctl",
		Short:         "Command-line client for the Shelfwise library server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverAddr, "addr", "127.0.0.1:8888", "server address (host:port)")
	root.PersistentFlags().StringVar(&sessionPath, "session", defaultSessionPath(), "path to the session file")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newSearchCmd(),
		newBorrowCmd(),
		newReturnCmd(),
		newLoansCmd(),
		newBooksCmd(),
		newUsersCmd(),
		newStatsCmd(),
		newImportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connect dials the configured server.
func connect() (*client.Client, error) {
	c, err := client.Dial(serverAddr)
	if err != nil {
		return nil, fmt.Errorf("cannot reach server at %s: %w", serverAddr, err)
	}
	return c, nil
}
