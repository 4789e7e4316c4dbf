package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"injectionfilter/internal/config"
	"injectionfilter/internal/constants"
	"injectionfilter/internal/logger"
	pkgerrors "injectionfilter/pkg/errors"
	"injectionfilter/pkg/logging"
)

const (
	outputText = "text"
	outputYAML = "yaml"
	outputJSON = "json"
)

// cli holds the global flags and the lazily initialized App. Commands that
// never touch the store (help, completion) do not open it.
type cli struct {
	configFile string
	user       string
	output     string
	noColor    bool

	app     *App
	ownsApp bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := &cli{}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		errorColor.Fprintf(stderr, "Error: %v\n", err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintf(stderr, "Hint: %s\n", hint)
		}
	}

	if shutdownErr := c.close(ctx); shutdownErr != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", shutdownErr)
	}

	return pkgerrors.ToExitCode(err)
}

func errorHint(err error) string {
	switch {
	case pkgerrors.IsNotFound(err):
		return "run 'filterctl list' to see the stored filters"
	case pkgerrors.IsConflict(err):
		return "use 'filterctl update' to change an existing filter"
	case pkgerrors.IsStoreUnavailable(err):
		return "check the store settings in --config and that the backend is reachable"
	case pkgerrors.IsValidation(err):
		return "run the command with --help for usage"
	}
	return ""
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "filterctl",
		Short: "Edit injection filter policies",
		Long: "filterctl edits the injection filters stored in a shared key-value store.\n" +
			"Each filter is an ordered list of named detection patterns kept under <prefix><id>.",
		Version:       constants.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.noColor {
				color.NoColor = true
			}
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return pkgerrors.ErrValidation.WithCause(err).WithMessage("invalid flags")
	})

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "Path to config file (default: $FILTERCTL_CONFIG or built-in defaults)")
	flags.StringVar(&c.user, "as", "", "User recorded as the author of changes (default: $USER)")
	flags.StringVarP(&c.output, "output", "o", outputText, "Output format: text, yaml or json")
	flags.BoolVar(&c.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newListCmd(c),
		newShowCmd(c),
		newCreateCmd(c),
		newUpdateCmd(c),
		newDeleteCmd(c),
		newPatternCmd(c),
		newExportCmd(c),
		newBindCmd(c),
		newResolveCmd(c),
		newHealthCmd(c),
	)

	return root
}

// appFor returns the App, creating and initializing it on first use.
func (c *cli) appFor(cmd *cobra.Command) (*App, error) {
	if c.app != nil {
		return c.app, nil
	}

	earlyLog := logging.NewEarlyLog(cmd.ErrOrStderr(), cmd.Root().Name())

	configFile := c.configFile
	if configFile == "" {
		configFile = os.Getenv("FILTERCTL_CONFIG")
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		earlyLog.Warn("Failed to load config: %v", err)
		return nil, pkgerrors.ErrValidation.WithCause(err).WithMessage("invalid configuration")
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Warn("Failed to init logger: %v", err)
		return nil, pkgerrors.ErrValidation.WithCause(err).WithMessage("invalid logging configuration")
	}

	app := NewApp(cfg, log)
	c.app, c.ownsApp = app, true

	if err := app.Initialize(cmd.Context()); err != nil {
		log.ErrorwCtx(cmd.Context(), "Failed to initialize", "error", err)
		return nil, err
	}
	return app, nil
}

// exec initializes the App and runs fn under App.Exec.
func (c *cli) exec(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	app, err := c.appFor(cmd)
	if err != nil {
		return err
	}
	return app.Exec(cmd.Context(), c.actor(), func(ctx context.Context) error {
		return fn(ctx, app)
	})
}

func (c *cli) actor() string {
	if c.user != "" {
		return c.user
	}
	return os.Getenv("USER")
}

func (c *cli) close(ctx context.Context) error {
	if c.app == nil || !c.ownsApp {
		return nil
	}
	defer c.app.logger.Sync()
	return c.app.Shutdown(ctx)
}
