package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/drewfead/gcalfeed/internal/auth"
	"github.com/drewfead/gcalfeed/internal/calendar"
	"github.com/drewfead/gcalfeed/internal/config"
)

const defaultCalendarID = "primary"

type loginResult struct {
	Connected    bool   `json:"connected" yaml:"connected"`
	ResponseCode int    `json:"response_code" yaml:"response_code"`
	Token        string `json:"token,omitempty" yaml:"token,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

type deleteResult struct {
	Deleted    bool   `json:"deleted" yaml:"deleted"`
	ID         string `json:"id" yaml:"id"`
	CalendarID string `json:"calendar_id" yaml:"calendar_id"`
}

func calendarFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "calendar",
		Aliases: []string{"c"},
		Usage:   "calendar ID",
		Value:   defaultCalendarID,
	}
}

func idFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Usage:    "event ID",
		Required: true,
	}
}

// eventFlags are shared by create and update.
func eventFlags() []cli.Flag {
	return []cli.Flag{
		calendarFlag(),
		&cli.StringFlag{Name: "title", Usage: "event title", Required: true},
		&cli.StringFlag{Name: "details", Usage: "event description"},
		&cli.StringFlag{Name: "location", Usage: "event location"},
		&cli.StringFlag{Name: "status", Usage: "event status"},
		&cli.StringFlag{Name: "start", Usage: "start time (RFC 3339)", Required: true},
		&cli.StringFlag{Name: "end", Usage: "end time (RFC 3339)", Required: true},
		&cli.StringFlag{Name: "kind", Usage: "single, quick or recurring", Value: "single"},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "authenticate and report the session state",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := newClient(ctx, cmd)
			if err != nil {
				return err
			}

			result := loginResult{
				Connected:    c.Connected(),
				ResponseCode: c.ResponseCode(),
			}
			if ts := c.TokenSource(); ts != nil {
				tok, err := ts.Token()
				if err != nil {
					return fmt.Errorf("unable to read session token: %w", err)
				}
				result.Token = auth.SanitizeToken(tok.AccessToken)
			}
			if err := c.ConnectErr(); err != nil {
				result.Error = err.Error()
			}

			if err := writeOutput(cmd, result); err != nil {
				return err
			}
			if !c.Connected() {
				return fmt.Errorf("unable to connect: %w", c.ConnectErr())
			}
			return nil
		},
	}
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "list events between two times (default: today)",
		Flags: []cli.Flag{
			calendarFlag(),
			&cli.StringFlag{Name: "min", Usage: "earliest start time (RFC 3339)"},
			&cli.StringFlag{Name: "max", Usage: "latest start time (RFC 3339)"},
			&cli.IntFlag{Name: "limit", Usage: "maximum number of events", Value: calendar.DefaultLimit},
			&cli.StringFlag{Name: "order", Usage: "a (ascending) or d (descending)", Value: string(calendar.OrderAscending)},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			startMin, err := parseTimeFlag(cmd, "min")
			if err != nil {
				return err
			}
			startMax, err := parseTimeFlag(cmd, "max")
			if err != nil {
				return err
			}

			c, err := connect(ctx, cmd)
			if err != nil {
				return err
			}

			result, err := c.Find(ctx, calendar.FindOptions{
				CalendarID: cmd.String("calendar"),
				Min:        startMin,
				Max:        startMax,
				Limit:      int(cmd.Int("limit")),
				Order:      calendar.Order(cmd.String("order")),
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd, result)
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "create an event",
		Flags: eventFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			in, err := eventInput(cmd)
			if err != nil {
				return err
			}

			c, err := connect(ctx, cmd)
			if err != nil {
				return err
			}

			event, err := c.Create(ctx, in)
			if err != nil {
				return err
			}
			return writeOutput(cmd, event)
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "replace an event",
		Flags: append([]cli.Flag{idFlag()}, eventFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			in, err := eventInput(cmd)
			if err != nil {
				return err
			}
			in.ID = cmd.String("id")

			c, err := connect(ctx, cmd)
			if err != nil {
				return err
			}

			event, err := c.Update(ctx, in)
			if errors.Is(err, calendar.ErrPartialUpdate) {
				slog.WarnContext(ctx, "replacement created but original event remains", "id", in.ID, "error", err)
				if werr := writeOutput(cmd, event); werr != nil {
					return werr
				}
				return err
			}
			if err != nil {
				return err
			}
			return writeOutput(cmd, event)
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "delete an event",
		Flags: []cli.Flag{calendarFlag(), idFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := connect(ctx, cmd)
			if err != nil {
				return err
			}

			calendarID, eventID := cmd.String("calendar"), cmd.String("id")
			deleted, err := c.Delete(ctx, calendarID, eventID)
			if err != nil {
				return err
			}
			return writeOutput(cmd, deleteResult{Deleted: deleted, ID: eventID, CalendarID: calendarID})
		},
	}
}

// newClient logs in with the credentials from flags, environment or the
// credentials file. The client is returned whether or not the login succeeded.
func newClient(ctx context.Context, cmd *cli.Command) (*calendar.Client, error) {
	creds, err := loadCredentials(cmd)
	if err != nil {
		return nil, err
	}

	return calendar.NewClient(ctx, calendar.Config{
		Credentials:        creds,
		AuthURL:            cmd.String("auth-url"),
		FeedURL:            cmd.String("feed-url"),
		Verbose:            cmd.Bool("verbose"),
		Logger:             slog.Default(),
		InsecureSkipVerify: cmd.Bool("insecure-skip-verify"),
		Lenient:            cmd.Bool("lenient"),
	}), nil
}

// connect is newClient for commands that need a session.
func connect(ctx context.Context, cmd *cli.Command) (*calendar.Client, error) {
	c, err := newClient(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !c.Connected() {
		return nil, fmt.Errorf("unable to connect (status %d): %w", c.ResponseCode(), c.ConnectErr())
	}
	return c, nil
}

// loadCredentials merges the credentials file with flag values. Flags win.
func loadCredentials(cmd *cli.Command) (auth.Credentials, error) {
	var creds auth.Credentials

	if cmd.String("username") == "" || cmd.String("password") == "" {
		path, err := config.ResolveCredentialsPath(cmd.String("credentials"))
		if err != nil {
			return auth.Credentials{}, err
		}
		if path != "" {
			creds, err = auth.LoadCredentials(path)
			if err != nil {
				return auth.Credentials{}, err
			}
		}
	}

	if v := cmd.String("username"); v != "" {
		creds.Username = v
	}
	if v := cmd.String("password"); v != "" {
		creds.Password = v
	}
	if v := cmd.String("source"); v != "" {
		creds.Source = v
	}
	if creds.Source == "" {
		creds.Source = auth.DefaultSource(appName)
	}
	if v := cmd.String("account-type"); v != "" {
		accountType, err := auth.ParseAccountType(v)
		if err != nil {
			return auth.Credentials{}, err
		}
		creds.AccountType = accountType
	}

	if creds.Username == "" {
		return auth.Credentials{}, errors.New("no username configured: pass --username or create a credentials file")
	}
	return creds, nil
}

func eventInput(cmd *cli.Command) (calendar.EventInput, error) {
	start, err := parseTimeFlag(cmd, "start")
	if err != nil {
		return calendar.EventInput{}, err
	}
	end, err := parseTimeFlag(cmd, "end")
	if err != nil {
		return calendar.EventInput{}, err
	}
	kind, err := parseKind(cmd.String("kind"))
	if err != nil {
		return calendar.EventInput{}, err
	}

	return calendar.EventInput{
		CalendarID: cmd.String("calendar"),
		Title:      cmd.String("title"),
		Details:    cmd.String("details"),
		Location:   cmd.String("location"),
		Status:     cmd.String("status"),
		Start:      start,
		End:        end,
		Kind:       kind,
	}, nil
}

func parseTimeFlag(cmd *cli.Command, name string) (time.Time, error) {
	v := cmd.String(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s (expected RFC3339): %w", name, err)
	}
	return t, nil
}

func parseKind(s string) (calendar.EventKind, error) {
	switch strings.ToLower(s) {
	case "", "single":
		return calendar.KindSingle, nil
	case "quick":
		return calendar.KindQuick, nil
	case "recurring":
		return calendar.KindRecurring, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q (want single, quick or recurring)", s)
	}
}
