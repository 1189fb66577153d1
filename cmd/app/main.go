package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/brain/internal"
	pkgconfig "github.com/starford/brain/pkg/config"
)

// appAction is a command body that runs against an opened application.
type appAction func(ctx context.Context, cmd *cli.Command, app *internal.App) error

func withApp(fn appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

func openApp(cmd *cli.Command) (*internal.App, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Store.Root = root
	}

	app, err := internal.Open(internal.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("app open error: %w", err)
	}
	return app, nil
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "brain",
		Usage: "Metadata-driven Markdown knowledge base: documents, derived views, validation and change monitoring",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "brain.yaml",
				Value:       "brain.yaml",
				Sources:     cli.EnvVars("BRAIN_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Knowledge base root, overrides store.root",
				Sources: cli.EnvVars("BRAIN_ROOT"),
			},
		},
		Commands: []*cli.Command{
			createCommand(),
			readCommand(),
			updateCommand(),
			deprecateCommand(),
			statsCommand(),
			highPriorityCommand(),
			tagsCommand(),
			categoryCommand(),
			indexCommand(),
			systemCommand(),
			infraCommand(),
			refreshCommand(),
			validateCommand(),
			monitorCommand(),
			watchCommand(),
			searchCommand(),
			mcpCommand(),
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
