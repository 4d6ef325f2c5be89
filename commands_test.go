package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"
	gcalendar "google.golang.org/api/calendar/v3"

	"github.com/drewfead/gcalfeed/internal/auth"
	"github.com/drewfead/gcalfeed/internal/calendar"
	"github.com/drewfead/gcalfeed/pkg/gdatatest"
)

// runCLI runs the root command against server and returns what it printed.
func runCLI(t *testing.T, server *gdatatest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.Writer = &out
	cmd.ErrWriter = io.Discard

	argv := append([]string{
		"gcalfeed",
		"--auth-url", server.LoginURL(),
		"--feed-url", server.FeedURL(),
	}, args...)
	err := cmd.Run(context.Background(), argv)
	return out.String(), err
}

func newServer(t *testing.T) *gdatatest.Server {
	t.Helper()
	server := gdatatest.NewServer()
	t.Cleanup(server.Close)
	server.AddAccount("owner@example.com", "secret", "tok123456")
	return server
}

func TestLoginCommand(t *testing.T) {
	server := newServer(t)

	out, err := runCLI(t, server, "--username", "owner@example.com", "--password", "secret", "login")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	var got loginResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("failed to decode output %q: %v", out, err)
	}
	want := loginResult{Connected: true, ResponseCode: 200, Token: "[token:9 chars]"}
	if got != want {
		t.Errorf("login output = %+v, want %+v", got, want)
	}
}

func TestLoginCommand_Rejected(t *testing.T) {
	server := newServer(t)

	out, err := runCLI(t, server, "--username", "owner@example.com", "--password", "wrong", "--output", "yaml", "login")
	if err == nil {
		t.Fatal("expected error for rejected login")
	}
	if !strings.Contains(out, "connected: false") || !strings.Contains(out, "response_code: 403") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCommands_RoundTrip(t *testing.T) {
	server := newServer(t)
	creds := []string{"--username", "owner@example.com", "--password", "secret"}

	out, err := runCLI(t, server, append(creds, "create",
		"--title", "Planning",
		"--location", "Room 4",
		"--start", "2024-03-01T10:00:00Z",
		"--end", "2024-03-01T11:00:00Z",
	)...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	var created calendar.Event
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("failed to decode create output: %v", err)
	}
	if created.ID == "" || created.Title != "Planning" || created.Location != "Room 4" {
		t.Fatalf("unexpected created event %+v", created)
	}

	out, err = runCLI(t, server, append(creds, "find",
		"--min", "2024-03-01T00:00:00Z",
		"--max", "2024-03-02T00:00:00Z",
	)...)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	var found calendar.FindResult
	if err := json.Unmarshal([]byte(out), &found); err != nil {
		t.Fatalf("failed to decode find output: %v", err)
	}
	if found.TotalResults != 1 || found.Events[0].ID != created.ID {
		t.Fatalf("unexpected find result %+v", found)
	}

	out, err = runCLI(t, server, append(creds, "update",
		"--id", created.ID,
		"--title", "Planning (moved)",
		"--start", "2024-03-01T13:00:00Z",
		"--end", "2024-03-01T14:00:00Z",
	)...)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	var updated calendar.Event
	if err := json.Unmarshal([]byte(out), &updated); err != nil {
		t.Fatalf("failed to decode update output: %v", err)
	}
	if updated.Title != "Planning (moved)" {
		t.Errorf("unexpected updated event %+v", updated)
	}

	out, err = runCLI(t, server, append(creds, "delete", "--id", updated.ID)...)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	var deleted deleteResult
	if err := json.Unmarshal([]byte(out), &deleted); err != nil {
		t.Fatalf("failed to decode delete output: %v", err)
	}
	if !deleted.Deleted || deleted.CalendarID != "primary" {
		t.Errorf("unexpected delete result %+v", deleted)
	}
	if n := len(server.GetEvents("primary")); n != 0 {
		t.Errorf("expected no events left, got %d", n)
	}
}

func TestFindCommand_ICS(t *testing.T) {
	server := newServer(t)
	server.AddEvent("work", &gcalendar.Event{
		Id:      "standup",
		Summary: "Standup",
		Start:   &gcalendar.EventDateTime{DateTime: "2024-03-01T09:00:00Z"},
		End:     &gcalendar.EventDateTime{DateTime: "2024-03-01T09:15:00Z"},
	})

	out, err := runCLI(t, server,
		"--username", "owner@example.com", "--password", "secret", "-o", "ics",
		"find", "--calendar", "work", "--min", "2024-03-01T00:00:00Z", "--max", "2024-03-01T23:59:59Z",
	)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}

	for _, want := range []string{"BEGIN:VCALENDAR", "UID:standup", "SUMMARY:Standup", "DTSTART:20240301T090000Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestDeleteCommand_NotFound(t *testing.T) {
	server := newServer(t)

	_, err := runCLI(t, server, "--username", "owner@example.com", "--password", "secret", "delete", "--id", "missing")
	if err == nil || !strings.Contains(err.Error(), "Not Found") {
		t.Errorf("expected Not Found error, got %v", err)
	}
}

func TestCreateCommand_InvalidTime(t *testing.T) {
	server := newServer(t)

	_, err := runCLI(t, server, "--username", "owner@example.com", "--password", "secret",
		"create", "--title", "x", "--start", "tomorrow", "--end", "2024-03-01T11:00:00Z")
	if err == nil || !strings.Contains(err.Error(), "--start") {
		t.Errorf("expected invalid --start error, got %v", err)
	}
	if server.Requests() != 0 {
		t.Errorf("expected no requests, got %d", server.Requests())
	}
}

func TestLoadCredentials_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	if err := os.WriteFile(path, []byte(`{"username":"file@example.com","password":"from-file","account_type":"google"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	var got auth.Credentials
	cmd := newRootCommand()
	cmd.Writer = io.Discard
	cmd.ErrWriter = io.Discard
	for _, sub := range cmd.Commands {
		if sub.Name == "login" {
			sub.Action = func(_ context.Context, c *cli.Command) error {
				var err error
				got, err = loadCredentials(c)
				return err
			}
		}
	}

	if err := cmd.Run(context.Background(), []string{"gcalfeed", "--credentials", path, "--password", "override", "login"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := auth.Credentials{
		Username:    "file@example.com",
		Password:    "override",
		Source:      "GCal_Feed",
		AccountType: auth.AccountTypeGoogle,
	}
	if got != want {
		t.Errorf("loadCredentials() = %+v, want %+v", got, want)
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]calendar.EventKind{
		"":          calendar.KindSingle,
		"single":    calendar.KindSingle,
		"Quick":     calendar.KindQuick,
		"recurring": calendar.KindRecurring,
	}
	for in, want := range tests {
		got, err := parseKind(in)
		if err != nil || got != want {
			t.Errorf("parseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseKind("weekly"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
