package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/spf13/cobra"
)

var (
	eventsLimit  int
	eventsFollow bool
)

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "number of recent events to show")
	eventsCmd.Flags().BoolVarP(&eventsFollow, "follow", "f", false, "stream command outcomes as they happen")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the command event log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if eventsLimit < 0 {
			return fmt.Errorf("--limit must be non-negative")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := resolveDaemonAddr()
		remote, err := dialBackend(ctx, addr)
		if err != nil {
			return err
		}
		defer remote.Close()

		if eventsLimit > 0 {
			listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			list, err := remote.client.ListEvents(listCtx, eventsLimit)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}
			if err := printEvents(list); err != nil {
				return err
			}
		}

		if !eventsFollow {
			return nil
		}
		err = remote.client.StreamOutcomes(ctx, func(out dispatcher.Outcome) {
			if IsJSONOutput() || IsJSONLOutput() {
				_ = writeJSON(os.Stdout, out)
				return
			}
			fmt.Fprintf(os.Stdout, "%s  %s\n", out.HandledAt.Local().Format("15:04:05.000"), formatOutcomeLine(out))
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func printEvents(list []*models.Event) error {
	if IsJSONOutput() {
		return writeJSON(os.Stdout, list)
	}
	if IsJSONLOutput() {
		for _, event := range list {
			if err := writeJSON(os.Stdout, event); err != nil {
				return err
			}
		}
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, event := range list {
		rows = append(rows, []string{
			event.Timestamp.Local().Format("15:04:05.000"),
			string(event.Type),
			string(event.EntityType),
			event.EntityID,
			truncate(string(event.Payload), 60),
		})
	}
	return writeTable(os.Stdout, []string{"TIME", "TYPE", "ENTITY", "ID", "PAYLOAD"}, rows)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
