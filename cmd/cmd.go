package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/pairly/messaging-service/config"
)

const ServiceName = "messaging-service"

var (
	version = "0.0.0"
	commit  = "hash"
	branch  = "branch"
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Real-time messaging and presence service",
		Version: version,
		Commands: []*cli.Command{
			serverCmd(),
			monitorCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the messaging server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address override",
			},
			&cli.StringFlag{
				Name:  "log_level",
				Usage: "Log level override (debug|info|warn|error)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"), overrideFlags(c))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

// overrideFlags bridges the CLI surface into the config loader, which
// takes pflag sets so overrides win over both file and environment.
func overrideFlags(c *cli.Context) *pflag.FlagSet {
	fs := pflag.NewFlagSet(ServiceName, pflag.ContinueOnError)
	if addr := c.String("addr"); addr != "" {
		fs.String("http.addr", addr, "")
		_ = fs.Set("http.addr", addr)
	}
	if level := c.String("log_level"); level != "" {
		fs.String("log.level", level, "")
		_ = fs.Set("log.level", level)
	}
	return fs
}
