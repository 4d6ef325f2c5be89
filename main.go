package main

//go:generate go tool golangci-lint fmt ./...

import (
	"context"
	"io"
	"log/slog"
	"os"

	slogotel "github.com/remychantenay/slog-otel"
	"github.com/urfave/cli/v3"

	"github.com/drewfead/gcalfeed/internal/calendar"
)

// appName names the application to the calendar service; the default client
// source is derived from it.
const appName = "GCal Feed"

const envPrefix = "GCALFEED_"

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:   "gcalfeed",
		Usage:  "read and write Google Calendar event feeds",
		Flags:  globalFlags(),
		Before: setupLogging,
		Commands: []*cli.Command{
			loginCommand(),
			findCommand(),
			createCommand(),
			updateCommand(),
			deleteCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "username",
			Usage:   "account email address",
			Sources: cli.EnvVars(envPrefix + "USERNAME"),
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "account password",
			Sources: cli.EnvVars(envPrefix + "PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "source",
			Usage:   "client source reported to the login endpoint (default derived from the application name)",
			Sources: cli.EnvVars(envPrefix + "SOURCE"),
		},
		&cli.StringFlag{
			Name:    "account-type",
			Usage:   "HOSTED_OR_GOOGLE, GOOGLE or HOSTED",
			Sources: cli.EnvVars(envPrefix + "ACCOUNT_TYPE"),
		},
		&cli.StringFlag{
			Name:    "credentials",
			Usage:   "credentials JSON file, read when --username or --password is missing (default ~/.config/gcalfeed/credentials.json)",
			Sources: cli.EnvVars(envPrefix + "CREDENTIALS"),
		},
		&cli.StringFlag{
			Name:    "auth-url",
			Usage:   "ClientLogin endpoint",
			Sources: cli.EnvVars(envPrefix + "AUTH_URL"),
		},
		&cli.StringFlag{
			Name:    "feed-url",
			Usage:   "root of the calendar feeds",
			Value:   calendar.DefaultFeedURL,
			Sources: cli.EnvVars(envPrefix + "FEED_URL"),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "log request diagnostics",
			Sources: cli.EnvVars(envPrefix + "VERBOSE"),
		},
		&cli.BoolFlag{
			Name:    "insecure-skip-verify",
			Usage:   "do not verify TLS certificates",
			Sources: cli.EnvVars(envPrefix + "INSECURE_SKIP_VERIFY"),
		},
		&cli.BoolFlag{
			Name:    "lenient",
			Usage:   "accept any create response, leaving undecodable fields empty",
			Sources: cli.EnvVars(envPrefix + "LENIENT"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: json, yaml or ics",
			Value:   formatJSON,
			Sources: cli.EnvVars(envPrefix + "OUTPUT"),
		},
	}
}

// setupLogging installs a text handler on the error writer, with trace and
// span IDs attached when a span is recording. Debug output is only enabled
// with --verbose.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if cmd.ErrWriter != nil {
		w = cmd.ErrWriter
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(slogotel.OtelHandler{Next: h}))
	return ctx, nil
}

func main() {
	ctx := context.Background()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
