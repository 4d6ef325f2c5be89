package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

const (
	// DefaultLoginURL is the ClientLogin endpoint.
	DefaultLoginURL = "https://www.google.com/accounts/ClientLogin"

	calendarService = "cl"
)

var (
	// ErrBadAuthentication is returned when the login endpoint answers 403.
	ErrBadAuthentication = errors.New("authentication rejected")
	// ErrNoAuthToken is returned when a login response carries no Auth field.
	ErrNoAuthToken = errors.New("login response has no Auth token")
)

// Executor is the part of httpexec.Executor that Login drives.
type Executor interface {
	Configure(headers []string, url string, isPost *bool)
	Execute(ctx context.Context, method string, body []byte) (string, error)
	Status() int
}

// LoginForm builds the ClientLogin request fields for the calendar service.
func LoginForm(creds Credentials) url.Values {
	return url.Values{
		"accountType": {creds.AccountType.String()},
		"Email":       {creds.Username},
		"Passwd":      {creds.Password},
		"source":      {creds.Source},
		"service":     {calendarService},
	}
}

// Login posts creds through exec and returns the session token. The caller
// reads the HTTP status from exec afterwards.
func Login(ctx context.Context, exec Executor, creds Credentials) (*oauth2.Token, error) {
	post := true
	exec.Configure([]string{"Content-Type: application/x-www-form-urlencoded"}, "", &post)

	body, err := exec.Execute(ctx, http.MethodPost, []byte(LoginForm(creds).Encode()))
	if err != nil {
		return nil, fmt.Errorf("unable to reach login endpoint: %w", err)
	}

	fields := ParseResponse(body)

	if exec.Status() == http.StatusForbidden {
		if reason := fields["Error"]; reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrBadAuthentication, reason)
		}
		return nil, ErrBadAuthentication
	}

	token := fields["Auth"]
	if token == "" {
		return nil, fmt.Errorf("%w (status %d)", ErrNoAuthToken, exec.Status())
	}

	return NewToken(token), nil
}

// ParseResponse splits a ClientLogin response body of key=value lines.
func ParseResponse(body string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, "=")
		fields[key] = value
	}
	return fields
}
