package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"runview/internal/form"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runFile string
	runJSON bool
)

var runCmd = &cobra.Command{
	Use:   "run [payload...]",
	Short: "Submit one payload and print the results and AST",
	Long: `Submits a payload once and prints the evaluator's answer.

The payload comes from the arguments (joined with spaces), from --file, or from
stdin when neither is given and stdin is not a terminal.

Examples:
  runview run '1+1'
  runview run -f program.txt --json
  echo '1+1' | runview run`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read the payload from a file")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the answer as a JSON object")
}

func runOnce(cmd *cobra.Command, args []string) error {
	payload, err := resolvePayload(args, runFile, cmd.InOrStdin(), stdinIsTerminal())
	if err != nil {
		return err
	}
	return submitOnce(cmd, payload, runJSON)
}

// resolvePayload picks the payload source: --file, then arguments, then piped stdin.
func resolvePayload(args []string, file string, stdin io.Reader, stdinTTY bool) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("pass the payload either as arguments or with --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read payload file: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case !stdinTTY:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return "", errors.New("no payload: pass it as arguments, with --file, or on stdin")
}

// submitOnce runs payload through a fresh form and prints the outcome.
func submitOnce(cmd *cobra.Command, payload string, asJSON bool) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client := newClient(appCfg)
	defer client.Close()

	f := form.New(client)
	f.Opened("cli")
	f.SetInput(payload)
	logger.Debug("submitting payload",
		zap.String("endpoint", client.Endpoint()),
		zap.Int("bytes", len(payload)),
		zap.String("session", f.SessionID()))

	out := f.Submit(ctx)
	if out.Status != form.StatusSuccess {
		logger.Error("run failed", zap.Error(out.Err), zap.String("session", f.SessionID()))
		return fmt.Errorf("run failed: %w", out.Err)
	}

	res, _ := f.Result()
	return printResult(cmd.OutOrStdout(), res, asJSON)
}
