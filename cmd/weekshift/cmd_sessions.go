// Package main implements the weekshift CLI.
// This file contains the session listing command.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"weekshift/internal/browser"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List known browser sessions",
	Long: `Lists the sessions recorded in the session store, including detached
ones left over from previous runs. A live tab can be re-watched with
'weekshift watch --target-id <target>'.`,
	RunE: runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	mgr := browser.NewSessionManager(getBrowserConfig(), logger)
	if err := mgr.RestoreSessions(); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	sessions := mgr.List()
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s  [%s]  target=%s  %s\n", s.ID, s.Status, s.TargetID, s.URL)
	}
	return nil
}
