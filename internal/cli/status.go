package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(switchCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the interaction machine status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		b, addr, err := openBackend(ctx, false)
		if err != nil {
			return err
		}
		defer b.Close()

		st, err := b.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status from %s: %w", addr, err)
		}
		return printStatus(st)
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch <number>",
	Short: "Make a recorded action current",
	Long:  "Make the action with the given 1-based number current. Fails while recording or executing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number < 1 {
			return fmt.Errorf("action number must be a positive integer, got %q", args[0])
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		addr := resolveDaemonAddr()
		remote, err := dialBackend(ctx, addr)
		if err != nil {
			return err
		}
		defer remote.Close()

		st, err := remote.client.SwitchAction(ctx, number)
		if err != nil {
			return fmt.Errorf("failed to switch to action %d: %w", number, err)
		}
		return printStatus(st)
	},
}

func printStatus(st interaction.Status) error {
	if IsJSONOutput() || IsJSONLOutput() {
		return writeJSON(os.Stdout, st)
	}

	current := "none"
	if st.CurrentName != "" {
		current = st.CurrentName
	}
	rows := [][]string{
		{"State", formatMachineState(st.State)},
		{"Actions", strconv.Itoa(st.ActionCount)},
		{"Current action", current},
		{"Steps", strconv.Itoa(st.StepCount)},
	}
	for _, limb := range models.Limbs {
		rows = append(rows, []string{string(limb), formatFreeze(st.Freeze[limb])})
	}
	if st.ExecutingStep >= 0 {
		rows = append(rows, []string{"Executing step", strconv.Itoa(st.ExecutingStep + 1)})
		rows = append(rows, []string{"Stopping", formatYesNo(st.Stopping)})
	}
	if last := st.LastExecution; last != nil {
		rows = append(rows, []string{"Last execution", formatExecution(last)})
	}
	return writeTable(os.Stdout, nil, rows)
}
