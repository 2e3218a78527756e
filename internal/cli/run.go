package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/scripts"
	"github.com/spf13/cobra"
)

var (
	runLocal      bool
	runProjectDir string
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scriptsCmd)

	runCmd.Flags().BoolVar(&runLocal, "local", false, "use an in-process simulator instead of pbdd")
	runCmd.PersistentFlags().StringVar(&runProjectDir, "dir", ".", "project directory searched for .pbd/scripts")
	scriptsCmd.Flags().StringVar(&runProjectDir, "dir", ".", "project directory searched for .pbd/scripts")
}

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Replay a script of command tokens",
	Long: `Replay a script by name or path. Scripts are searched in
.pbd/scripts, the user config dir, and the builtin set.`,
	Example: `  pbd run teach-and-replay --local
  pbd run ./demo.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := scripts.Resolve(runProjectDir, args[0])
		if err != nil {
			return &PreflightError{
				Message:  err.Error(),
				Hint:     "scripts are looked up by name or file path",
				NextStep: "pbd scripts",
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, target, err := openBackend(ctx, runLocal)
		if err != nil {
			return err
		}
		defer b.Close()

		runner := scripts.NewRunner(b, func(ctx context.Context) (interaction.State, error) {
			st, err := b.Status(ctx)
			return st.State, err
		})

		if progressEnabled() {
			fmt.Fprintf(progressOut, "Running %s against %s (%d steps)\n", script.Name, target, len(script.Steps))
		}
		report, runErr := runner.Run(ctx, script, func(res scripts.StepResult) {
			printStepResult(len(script.Steps), res)
		})

		if IsJSONOutput() {
			if err := writeJSON(os.Stdout, report); err != nil {
				return err
			}
		} else if !IsJSONLOutput() {
			fmt.Fprintf(os.Stdout, "%s: %d/%d steps completed, %d failed in %s\n",
				report.Script, report.Completed, report.Steps, report.Failed, formatDuration(report.Duration))
		}
		return runErr
	},
}

func printStepResult(total int, res scripts.StepResult) {
	if IsJSONLOutput() {
		entry := map[string]any{
			"index":      res.Index,
			"type":       res.Step.Type,
			"elapsed_ms": res.Elapsed.Milliseconds(),
		}
		if res.Step.Command != "" {
			entry["command"] = res.Step.Command
		}
		if res.Outcome != nil {
			entry["outcome"] = res.Outcome
		}
		if res.Err != nil {
			entry["error"] = res.Err.Error()
		}
		_ = writeJSON(os.Stdout, entry)
		return
	}
	if !progressEnabled() {
		return
	}

	label := string(res.Step.Type)
	switch res.Step.Type {
	case scripts.StepTypeCommand:
		label = res.Step.Command
	case scripts.StepTypePause:
		label = "pause " + res.Step.Duration
	case scripts.StepTypeWait:
		label = "wait for " + res.Step.State
	}
	result := colorize("ok", colorGreen)
	if res.Err != nil {
		result = colorize(res.Err.Error(), colorRed)
	}
	fmt.Fprintf(progressOut, "  [%d/%d] %-28s %s (%s)\n", res.Index+1, total, label, result, formatDuration(res.Elapsed))
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "List available scripts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := scripts.LoadFromSearchPaths(runProjectDir)
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return writeJSON(os.Stdout, list)
		}

		rows := make([][]string, 0, len(list))
		for _, s := range list {
			rows = append(rows, []string{s.Name, fmt.Sprintf("%d", len(s.Steps)), s.Source, s.Description})
		}
		return writeTable(os.Stdout, []string{"NAME", "STEPS", "SOURCE", "DESCRIPTION"}, rows)
	},
}
