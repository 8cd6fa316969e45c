package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/j-veylop/amplitude-export/internal/amplitude"
	"github.com/j-veylop/amplitude-export/internal/archive"
	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
	"github.com/j-veylop/amplitude-export/internal/services/exporter"
	"github.com/j-veylop/amplitude-export/internal/ui/components"
	"github.com/j-veylop/amplitude-export/internal/ui/styles"
	"github.com/j-veylop/amplitude-export/internal/version"
)

var exportFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "File to write the export to (default: amplitude-export.zip).",
	},
	&cli.StringFlag{
		Name:    "project",
		Aliases: []string{"p"},
		Usage:   "Configured project to export. Defaults to the AMPLITUDE_PROJECT_* variables.",
	},
	&cli.StringFlag{
		Name:  "extract",
		Usage: "Unpack the downloaded archive into this directory, replacing its contents.",
	},
}

func (a *app) exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Download the raw events of one project for a time window",
		UsageText: version.Name + " export [--start YYYYMMDDTHH] [--end YYYYMMDDTHH] [-o FILE] [-p PROJECT]\n\n" +
			"Credentials come from AMPLITUDE_PROJECT_API_KEY and AMPLITUDE_PROJECT_SECRET_KEY\n" +
			"or from a project file (see init).",
		Action: a.exportAction,
	}
}

func (a *app) exportAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() {
		return fmt.Errorf("unknown command %q", cmd.Args().First())
	}

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	r, err := timeRange(cmd)
	if err != nil {
		return err
	}

	creds, project, err := cfg.Credentials(cmd.String("project"), a.projectPicker())
	if err != nil {
		return err
	}

	httpClient := a.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	client := amplitude.NewClient(httpClient, cfg.Endpoint, creds)
	client.SetUserAgent(version.UserAgent())

	output := cmd.String("output")
	if output == "" {
		output = cfg.Output
	}

	result, err := a.download(ctx, exporter.New(client), r, output)
	if result != nil {
		a.println(renderExport(result, r, project))
	}
	if err != nil {
		var statusErr *amplitude.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Errorf("%w (response body saved to %s)", err, output)
		}
		return err
	}

	if dir := cmd.String("extract"); dir != "" {
		extracted, err := archive.Unpack(output, dir)
		if extracted != nil {
			a.println(renderExtract(extracted))
		}
		if err != nil {
			return fmt.Errorf("failed to unpack %s: %w", output, err)
		}
	}

	return nil
}

// download runs the export, drawing a transfer spinner when stderr is a terminal.
func (a *app) download(ctx context.Context, exp *exporter.Exporter, r models.TimeRange, output string) (*models.ExportResult, error) {
	tty, ok := a.stderr.(*os.File)
	if !ok || !isatty.IsTerminal(tty.Fd()) {
		return exp.Run(ctx, r, output)
	}

	p := tea.NewProgram(
		components.NewTransferSpinner("Downloading "+r.String()),
		tea.WithOutput(tty),
		tea.WithInput(nil),
		tea.WithContext(ctx),
	)
	exp.OnProgress(func(written int64) {
		p.Send(components.TransferMsg(written))
	})

	var (
		result *models.ExportResult
		err    error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err = exp.Run(ctx, r, output)
		p.Send(components.TransferDoneMsg{})
	}()

	if _, runErr := p.Run(); runErr != nil {
		logger.Debug("transfer spinner stopped", "error", runErr)
	}
	<-done
	return result, err
}

func renderExport(result *models.ExportResult, r models.TimeRange, project string) string {
	status := styles.StatusStyle(result.StatusCode)
	rows := []components.Row{
		{Label: "Window", Value: fmt.Sprintf("%s (%d hours)", r, r.Hours())},
	}
	if project != "" {
		rows = append(rows, components.Row{Label: "Project", Value: project})
	}
	rows = append(rows,
		components.Row{Label: "Status", Value: result.Status, Style: &status},
		components.Row{Label: "File", Value: result.Path},
		components.Row{Label: "Size", Value: humanize.Bytes(uint64(result.Bytes))},
		components.Row{Label: "Took", Value: result.Duration.Round(time.Millisecond).String()},
	)
	return components.RenderSummary("Export", rows)
}

func renderExtract(result *models.ExtractResult) string {
	return components.RenderSummary("Extract", []components.Row{
		{Label: "Directory", Value: filepath.Clean(result.Dir)},
		{Label: "Files", Value: humanize.Comma(int64(len(result.Files)))},
		{Label: "Decompressed", Value: humanize.Comma(int64(len(result.Decompressed)))},
		{Label: "Size", Value: humanize.Bytes(uint64(result.Bytes))},
	})
}

func (a *app) extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Unpack a downloaded export and decompress its event files",
		UsageText: version.Name + " extract [--input FILE] [--dir DIR]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Export archive to unpack (default: the configured output file).",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory to unpack into, replacing its contents (default: archive name without extension).",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			input := cmd.String("input")
			if input == "" {
				input = cfg.Output
			}
			dir := cmd.String("dir")
			if dir == "" {
				dir = strings.TrimSuffix(input, filepath.Ext(input))
			}

			result, err := archive.Unpack(input, dir)
			if result != nil {
				a.println(renderExtract(result))
			}
			return err
		},
	}
}
