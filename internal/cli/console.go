package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencode-ai/pbd/internal/tui"
	"github.com/spf13/cobra"
)

var (
	consoleLocal bool
	consoleTheme string
	consolePoll  time.Duration
)

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().BoolVar(&consoleLocal, "local", false, "use an in-process simulator instead of pbdd")
	consoleCmd.Flags().StringVar(&consoleTheme, "theme", "default", "color theme: default or high-contrast")
	consoleCmd.Flags().DurationVar(&consolePoll, "poll", 500*time.Millisecond, "status refresh interval")
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the keyboard operator console",
	Long: `Open a full-screen console that sends command tokens on key presses
and shows the machine status. Press ? for the key map.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsNonInteractive() {
			return &PreflightError{
				Message:  "the console needs an interactive terminal",
				Hint:     "stdin and stdout must be a TTY and --non-interactive must be unset",
				NextStep: "pbd send <token>",
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, target, err := openBackend(ctx, consoleLocal)
		if err != nil {
			return err
		}
		defer b.Close()

		return tui.Run(ctx, b, tui.Config{
			Theme:        consoleTheme,
			PollInterval: consolePoll,
			Title:        target,
		})
	},
}
