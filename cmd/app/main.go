package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/coursesync/internal"
	pkgconfig "github.com/starford/coursesync/pkg/config"
)

var version = "dev"

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Course.Root = root
	}
	if name := cmd.String("course"); name != "" {
		cfg.Course.Name = name
	}

	return []internal.Option{
		internal.WithConfig(cfg),
	}, nil
}

// action adapts an internal command to a cli action.
func action(run func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		if err := run(ctx, cmd, opts); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		return nil
	}
}

func idsCommand(name, usage string, run func(context.Context, []string, ...internal.Option) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<category/+name|category/?name|category/:id|category/*>...",
		Action: action(func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error {
			return run(ctx, cmd.Args().Slice(), opts...)
		}),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "coursesync",
		Usage:   "Synchronize LMS course content with a local YAML and Markdown directory",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Course directory (overrides course.root)",
				Sources: cli.EnvVars("COURSESYNC_ROOT"),
			},
			&cli.StringFlag{
				Name:    "course",
				Usage:   "Remote course id (overrides course.name)",
				Sources: cli.EnvVars("COURSESYNC_COURSE"),
			},
		},
		Commands: []*cli.Command{
			idsCommand("pull", "Download resources into the course directory", internal.Pull),
			idsCommand("push", "Upload resources from the course directory", internal.Push),
			idsCommand("publicize", "Write the public view of resources", internal.Publicize),
			{
				Name:      "render",
				Usage:     "Render a template from _templates",
				ArgsUsage: "<template>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "YAML file with template data"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				},
				Action: action(func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("expected one template name, got %d", cmd.Args().Len())
					}
					return internal.Render(ctx, cmd.Args().First(), cmd.String("data"), cmd.String("output"), opts...)
				}),
			},
			{
				Name:  "index",
				Usage: "Rebuild the local resource catalog",
				Action: action(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.Index(ctx, opts...)
				}),
			},
			{
				Name:  "watch",
				Usage: "Keep the local resource catalog in sync with the course directory",
				Action: action(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.Watch(ctx, opts...)
				}),
			},
			{
				Name:  "serve",
				Usage: "Serve the read-only catalog API with live change events",
				Action: action(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.Serve(ctx, opts...)
				}),
			},
			{
				Name:  "mcp",
				Usage: "Serve the catalog to MCP clients over stdio",
				Action: action(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.ServeMCP(ctx, version, opts...)
				}),
			},
			{
				Name:  "token",
				Usage: "Issue a JWT for the HTTP API in jwt auth mode",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "coursesync", Usage: "Token subject"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime (0 for no expiry)"},
				},
				Action: action(func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error {
					return internal.IssueToken(ctx, cmd.String("subject"), cmd.Duration("ttl"), opts...)
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
