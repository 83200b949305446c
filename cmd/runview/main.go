// Command runview submits program text to an evaluator service and shows the
// results and AST it returns.
//
// Run without arguments to open the terminal form. Piped stdin is submitted once
// and printed, like `runview run`.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"runview/cmd/runview/tui"
	"runview/cmd/runview/ui"
	"runview/internal/config"
	"runview/internal/form"
	"runview/internal/logging"
	"runview/internal/runclient"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose    bool
	configPath string
	serverAddr string
	serverPort int
	timeout    string

	logger *zap.Logger
	appCfg *config.Config

	// stdinIsTerminal is swapped out in tests.
	stdinIsTerminal = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

var rootCmd = &cobra.Command{
	Use:   "runview",
	Short: "Submit program text to an evaluator and view the results and AST",
	Long: `runview sends program text to an evaluator service (POST /run) and shows the
"results" and "ast" fields of its JSON answer.

Run without arguments to open the terminal form. When stdin is not a terminal,
its contents are submitted once and printed.

The evaluator address comes from the config file, SERVER_ADDR / SERVER_PORT,
or the --addr / --port flags, in increasing order of precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.runview/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "Evaluator host (overrides SERVER_ADDR)")
	rootCmd.PersistentFlags().IntVar(&serverPort, "port", 0, "Evaluator port (overrides SERVER_PORT)")
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "", "Request timeout, e.g. 30s; 0 disables")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and builds the loggers.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	appCfg = cfg

	if err := logging.Initialize("", cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	// The terminal form owns the screen; it logs to files only.
	if !cmd.HasParent() && stdinIsTerminal() {
		logger = zap.NewNop()
		return nil
	}

	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = serverAddr
	}
	if flags.Changed("port") {
		cfg.Server.Port = serverPort
	}
	if flags.Changed("timeout") {
		cfg.Server.Timeout = timeout
	}
	if verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *runclient.Client {
	return runclient.New(runclient.Config{
		Endpoint: cfg.Endpoint(),
		Timeout:  cfg.GetTimeout(),
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runRoot(cmd *cobra.Command, args []string) error {
	if !stdinIsTerminal() {
		payload, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		return submitOnce(cmd, string(payload), false)
	}

	client := newClient(appCfg)
	defer client.Close()

	styles := ui.DefaultStyles()
	if appCfg.UI.DarkMode {
		styles = ui.NewStyles(ui.DarkTheme())
	}

	logging.Boot("starting terminal form against %s", appCfg.Endpoint())
	return tui.Run(tui.Config{
		Form:           form.New(client),
		Endpoint:       appCfg.Endpoint(),
		Styles:         styles,
		RenderMarkdown: appCfg.UI.RenderMarkdown,
	})
}
