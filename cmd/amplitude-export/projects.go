package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/j-veylop/amplitude-export/internal/config"
	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/ui/styles"
	"github.com/j-veylop/amplitude-export/internal/version"
)

// defaultProjectFile is what init writes when no path is given.
const defaultProjectFile = "amplitude.yaml"

func (a *app) projectsCommand() *cli.Command {
	return &cli.Command{
		Name:      "projects",
		Usage:     "List the projects defined in the project file",
		UsageText: version.Name + " projects [--config FILE]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			names := cfg.ProjectNames()
			if len(names) == 0 {
				a.println(styles.WarningTextStyle.Render("No projects configured."))
				a.printf("Run %q to create a project file, or set %s and %s.\n",
					version.Name+" init", config.EnvAPIKey, config.EnvSecretKey)
				return nil
			}

			a.println(styles.SubTitleStyle.Render(fmt.Sprintf("Projects in %s", cfg.ConfigFile)))
			for _, name := range names {
				line := name
				if !cfg.Projects[name].Complete() {
					line += " " + styles.ErrorTextStyle.Render("(incomplete)")
				}
				a.println(styles.ListItemStyle.Render(line))
			}
			return nil
		},
	}
}

func (a *app) initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a project file template",
		UsageText: version.Name + " init [--force] [FILE]",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 1 {
				return fmt.Errorf("init takes at most one file, got %d", cmd.Args().Len())
			}
			path := cmd.Args().First()
			if path == "" {
				path = defaultProjectFile
			}

			if err := config.WriteSample(path, cmd.Bool("force")); err != nil {
				return err
			}
			logger.Debug("wrote project file", "path", path)

			a.println(styles.SuccessTextStyle.Render("Created " + path))
			a.println(styles.HelpStyle.Render("Fill in api_key and secret_key, then run " + version.Name + " --project my_project."))
			return nil
		},
	}
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a.println(version.Info())
			return nil
		},
	}
}
