package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/j-veylop/amplitude-export/internal/config"
	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
	"github.com/j-veylop/amplitude-export/internal/ui/picker"
	"github.com/j-veylop/amplitude-export/internal/ui/styles"
	"github.com/j-veylop/amplitude-export/internal/version"
)

// globalFlags are the flags that should be available on all commands
var globalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "json",
		Usage: "Output logs as JSON.  Set to true if stderr is not a TTY.",
	},
	&cli.BoolFlag{
		Name:  "verbose",
		Usage: "Enable verbose logging.",
	},
	&cli.StringFlag{
		Name:    "log-level",
		Aliases: []string{"l"},
		Value:   "info",
		Usage:   "Set the log level.  One of: debug, info, warn, error.",
		Sources: cli.EnvVars("LOG_LEVEL"),
	},
	&cli.StringFlag{
		Name:    "log-handler",
		Usage:   "Log format.  One of: dev, text, json.  Defaults to dev on a terminal.",
		Sources: cli.EnvVars("LOG_HANDLER"),
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Project file to read (.json, .yaml or .yml).",
	},
}

// rangeFlags select the export window. They are shared by export and stats.
var rangeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "start",
		Value: models.DefaultStart,
		Usage: "First hour to export, as YYYYMMDDTHH or YYYY-MM-DD (UTC).",
	},
	&cli.StringFlag{
		Name:  "end",
		Value: models.DefaultEnd,
		Usage: "Last hour to export, as YYYYMMDDTHH or YYYY-MM-DD (UTC).",
	},
}

// app carries the dependencies shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// httpClient overrides the client built from configuration.
	httpClient *http.Client
	// pick overrides the interactive project picker.
	pick config.Picker
	// skipDotEnv disables .env discovery.
	skipDotEnv bool

	cfg *config.Config
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) command() *cli.Command {
	flags := append([]cli.Flag{}, globalFlags...)
	flags = append(flags, rangeFlags...)
	flags = append(flags, exportFlags...)

	return &cli.Command{
		Name: version.Name,
		Usage: fmt.Sprintf("%s\n\n%s",
			styles.TitleStyle.Render("Amplitude raw event export"),
			"Downloads an Amplitude project export and loads it into SQLite.\n"+
				"Without a command, runs export with the default window."),
		Version:   version.GetVersion(),
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Before:    a.before,
		Flags:     flags,
		Action:    a.exportAction,
		Commands: []*cli.Command{
			a.exportCommand(),
			a.extractCommand(),
			a.convertCommand(),
			a.statsCommand(),
			a.projectsCommand(),
			a.initCommand(),
			a.versionCommand(),
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := cmd.String("log-level")
	if cmd.Bool("verbose") && !cmd.IsSet("log-level") {
		level = "debug"
	}

	logger.Init(logger.Options{
		Writer:  a.stderr,
		Level:   level,
		Handler: cmd.String("log-handler"),
		JSON:    cmd.Bool("json"),
	})
	return ctx, nil
}

// loadConfig loads configuration once per invocation.
func (a *app) loadConfig(cmd *cli.Command) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	cfg, err := config.Load(config.Options{
		ConfigPath: cmd.String("config"),
		SkipDotEnv: a.skipDotEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

// projectPicker returns the project picker, or nil when stdin is not interactive.
func (a *app) projectPicker() config.Picker {
	if a.pick != nil {
		return a.pick
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil
	}
	return func(names []string) (string, error) {
		return picker.Run("Select an Amplitude project", names)
	}
}

// timeRange reads --start and --end.
func timeRange(cmd *cli.Command) (models.TimeRange, error) {
	return models.ParseTimeRange(cmd.String("start"), cmd.String("end"))
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) println(s string) {
	_, _ = fmt.Fprintln(a.stdout, s)
}
