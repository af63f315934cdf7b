package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/skald/internal"
	pkgconfig "github.com/starford/skald/pkg/config"
)

// loadConfig reads the config file when present and falls back to the
// built-in defaults otherwise. The returned path is empty when no file
// exists, which disables hot-reload.
func loadConfig(cmd *cli.Command) (*internal.Config, string, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := os.Stat(configPath); err != nil {
		return cfg, "", nil
	}
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, configPath, nil
}

func runDaemon(ctx context.Context, cmd *cli.Command) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := []internal.Option{internal.WithConfig(cfg)}
	if path != "" {
		opts = append(opts, internal.WithConfigFile(path))
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runDev(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunDev(ctx, internal.WithConfig(cfg))
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(internal.WithConfig(cfg))
}

func runLogin(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Login(ctx, cmd.String("username"), cmd.String("password"),
		internal.WithConfig(cfg))
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "skald",
		Usage:  "Sync daemon for the daybook journal: follows the server's push-event stream and keeps local state fresh",
		Action: runDaemon,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "dev",
				Usage:  "Run the built-in fake daybook server with a live event stream",
				Action: runDev,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "mcp",
				Usage:  "Serve daybook MCP tools over stdio",
				Action: runMCP,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "login",
				Usage:  "Authenticate and store the API token locally",
				Action: runLogin,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Account name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Required: true,
						Sources:  cli.EnvVars("SKALD_PASSWORD"),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
