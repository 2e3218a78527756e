package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/spf13/cobra"
)

var (
	sendTimeout time.Duration
	sendLocal   bool
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", time.Minute, "time to wait for each outcome")
	sendCmd.Flags().BoolVar(&sendLocal, "local", false, "use an in-process simulator instead of pbdd")
}

var sendCmd = &cobra.Command{
	Use:   "send <token>...",
	Short: "Send command tokens",
	Long: `Send one or more command tokens, in order, as if spoken.

Each token waits for its outcome before the next is sent.`,
	Example: `  pbd send relax-right-arm create-new-action
  pbd send save-pose freeze-right-arm
  pbd send execute-action`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		b, _, err := openBackend(ctx, sendLocal)
		if err != nil {
			return err
		}
		defer b.Close()

		outcomes := make([]dispatcher.Outcome, 0, len(args))
		var failed int
		for _, raw := range args {
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			out, err := b.Send(sendCtx, strings.TrimSpace(raw))
			cancel()
			if err != nil {
				return fmt.Errorf("failed to send %q: %w", raw, err)
			}
			if out.Raw == "" {
				out.Raw = raw
			}
			if !out.OK() {
				failed++
			}
			outcomes = append(outcomes, out)

			if IsJSONLOutput() {
				if err := writeJSON(os.Stdout, out); err != nil {
					return err
				}
				continue
			}
			if !IsJSONOutput() {
				fmt.Fprintln(os.Stdout, formatSendLine(out))
			}
		}

		if IsJSONOutput() {
			if err := writeJSON(os.Stdout, outcomes); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d commands not applied", failed, len(args))
		}
		return nil
	},
}

func formatSendLine(out dispatcher.Outcome) string {
	if out.Command == "" {
		return fmt.Sprintf("%-9s %-24s %s", formatOutcomeStatus(out.Status), out.Raw, out.Error)
	}
	return formatOutcomeLine(out)
}
