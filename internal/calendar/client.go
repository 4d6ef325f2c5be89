package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/drewfead/gcalfeed/internal/auth"
	"github.com/drewfead/gcalfeed/internal/httpexec"
)

const (
	// DefaultFeedURL is the root of the calendar feeds.
	DefaultFeedURL = "https://www.google.com/calendar/feeds/"

	gdataVersion = "2.6"
)

// Config holds the settings of a calendar client.
type Config struct {
	Credentials auth.Credentials
	// Optional: override endpoints for testing
	AuthURL string
	FeedURL string
	// Verbose enables diagnostic logging through Logger (slog.Default when nil).
	Verbose bool
	Logger  *slog.Logger
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// Lenient accepts any create response, yielding zero-valued fields for
	// whatever cannot be decoded.
	Lenient bool
	// Optional: round tripper for all requests
	Transport http.RoundTripper
}

// Client talks to the calendar feed on behalf of one authenticated user.
// It is not safe for concurrent use.
type Client struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	connected  bool
	status     int
	token      *oauth2.Token
	connectErr error
}

// NewClient logs in with cfg.Credentials. A client is returned even when the
// login fails; it reports Connected() == false and every operation on it
// returns ErrNotConnected without touching the network.
func NewClient(ctx context.Context, cfg Config) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = auth.DefaultLoginURL
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultFeedURL
	}
	if !strings.HasSuffix(cfg.FeedURL, "/") {
		cfg.FeedURL += "/"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Verbose {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	c.connect(ctx)
	return c
}

func (c *Client) connect(ctx context.Context) {
	exec := c.newExecutor(c.cfg.AuthURL)
	tok, err := auth.Login(ctx, exec, c.cfg.Credentials)
	c.status = exec.Status()
	if err != nil {
		c.connectErr = err
		c.logger.WarnContext(ctx, "could not establish connection to Google Calendar",
			"status", c.status,
			"error", err,
		)
		return
	}

	c.token = tok
	c.connected = true
	c.logger.DebugContext(ctx, "connected to Google Calendar",
		"status", c.status,
		"token", auth.SanitizeToken(tok.AccessToken),
	)
}

// Connected reports whether the login succeeded.
func (c *Client) Connected() bool {
	return c.connected
}

// ConnectErr returns the reason the login failed, nil when connected.
func (c *Client) ConnectErr() error {
	return c.connectErr
}

// ResponseCode returns the HTTP status of the last request.
func (c *Client) ResponseCode() int {
	return c.status
}

// TokenSource exposes the session token, nil when not connected.
func (c *Client) TokenSource() oauth2.TokenSource {
	if !c.connected {
		return nil
	}
	return oauth2.StaticTokenSource(c.token)
}

func (c *Client) findEvents(ctx context.Context, opts FindOptions) (FindResult, error) {
	if !c.connected {
		c.logger.InfoContext(ctx, "cannot complete query, no connection has been established")
		return FindResult{}, ErrNotConnected
	}
	if err := checkRequired("find", requirement{"calendar_id", opts.CalendarID == ""}); err != nil {
		c.logger.InfoContext(ctx, "invalid find options", "error", err)
		return FindResult{}, err
	}

	query, err := c.findQuery(opts)
	if err != nil {
		c.logger.InfoContext(ctx, "invalid find options", "error", err)
		return FindResult{}, err
	}
	target, err := c.feedURL(opts.CalendarID, "", query)
	if err != nil {
		return FindResult{}, err
	}

	exec, body, err := c.do(ctx, http.MethodGet, target, false, nil)
	if err != nil {
		return FindResult{}, fmt.Errorf("unable to find events: %w", err)
	}
	if exec.Status() != http.StatusOK {
		apiErr := statusError(exec)
		c.logger.InfoContext(ctx, "find returned an unexpected status", "status", exec.Status(), "error", apiErr)
		return FindResult{}, fmt.Errorf("unable to find events: %w", apiErr)
	}

	result, err := MapFeed([]byte(body), opts.CalendarID)
	if err != nil {
		return FindResult{}, err
	}
	return result, nil
}

func (c *Client) createEvent(ctx context.Context, in EventInput) (Event, error) {
	if !c.connected {
		c.logger.InfoContext(ctx, "cannot create event, no connection has been established")
		return Event{}, ErrNotConnected
	}
	if err := in.validateCreate("create"); err != nil {
		c.logger.InfoContext(ctx, "invalid create options", "error", err)
		return Event{}, err
	}
	if in.Kind > KindSingle {
		c.logger.DebugContext(ctx, "creating event as single event", "kind", int(in.Kind))
	}

	payload, err := MapInputToPayload(in)
	if err != nil {
		return Event{}, err
	}
	target, err := c.feedURL(in.CalendarID, "", nil)
	if err != nil {
		return Event{}, err
	}

	exec, body, err := c.do(ctx, http.MethodPost, target, true, payload)
	if err != nil {
		return Event{}, fmt.Errorf("unable to create event: %w", err)
	}
	if !c.cfg.Lenient && (exec.Status() < 200 || exec.Status() > 299) {
		apiErr := statusError(exec)
		c.logger.InfoContext(ctx, "create returned an unexpected status", "status", exec.Status(), "error", apiErr)
		return Event{}, fmt.Errorf("unable to create event: %w", apiErr)
	}

	return MapEventResponse([]byte(body), in.CalendarID, c.cfg.Lenient)
}

func (c *Client) updateEvent(ctx context.Context, in EventInput) (Event, error) {
	if !c.connected {
		c.logger.InfoContext(ctx, "cannot update event, no connection has been established")
		return Event{}, ErrNotConnected
	}
	if err := checkRequired("update", requirement{"id", in.ID == ""}, requirement{"calendar_id", in.CalendarID == ""}); err != nil {
		c.logger.InfoContext(ctx, "invalid update options", "error", err)
		return Event{}, err
	}
	// Checked before the delete so a bad input cannot remove the original.
	if err := in.validateCreate("update"); err != nil {
		c.logger.InfoContext(ctx, "invalid update options", "error", err)
		return Event{}, err
	}

	deleted, deleteErr := c.Delete(ctx, in.CalendarID, in.ID)

	event, err := c.Create(ctx, in)
	if err != nil {
		if deleteErr != nil {
			return Event{}, fmt.Errorf("unable to update event: %w; %w", deleteErr, err)
		}
		return Event{}, fmt.Errorf("unable to update event: %w", err)
	}
	if !deleted {
		return event, fmt.Errorf("%w: %w", ErrPartialUpdate, deleteErr)
	}
	return event, nil
}

func (c *Client) deleteEvent(ctx context.Context, calendarID, eventID string) (bool, error) {
	if !c.connected {
		c.logger.InfoContext(ctx, "cannot delete event, no connection has been established")
		return false, ErrNotConnected
	}
	if err := checkRequired("delete", requirement{"id", eventID == ""}, requirement{"calendar_id", calendarID == ""}); err != nil {
		c.logger.InfoContext(ctx, "invalid delete options", "error", err)
		return false, err
	}

	target, err := c.feedURL(calendarID, eventID, nil)
	if err != nil {
		return false, err
	}

	exec, body, err := c.do(ctx, http.MethodDelete, target, true, nil)
	if err != nil {
		return false, fmt.Errorf("unable to delete event: %w", err)
	}
	if exec.Status() != http.StatusOK {
		apiErr := statusError(exec)
		c.logger.InfoContext(ctx, "could not delete event", "status", exec.Status(), "error", apiErr)
		return false, fmt.Errorf("unable to delete event: %w", apiErr)
	}
	if trimmed := strings.TrimSpace(body); trimmed != "" && trimmed != "null" {
		return false, fmt.Errorf("unable to delete event: unexpected response %q", trimmed)
	}

	return true, nil
}

// statusError describes a response whose status the caller did not accept.
func statusError(exec *httpexec.Executor) error {
	if err := exec.APIError(); err != nil {
		return err
	}
	return fmt.Errorf("unexpected status %d", exec.Status())
}

func (c *Client) newExecutor(target string) *httpexec.Executor {
	opts := []httpexec.Option{
		httpexec.WithInsecureSkipVerify(c.cfg.InsecureSkipVerify),
		httpexec.WithLogger(c.logger),
	}
	if c.cfg.Transport != nil {
		opts = append(opts, httpexec.WithTransport(c.cfg.Transport))
	}
	return httpexec.New(target, opts...)
}

// headers builds the header lines of a feed request. Conditional requests
// carry If-Match so the service applies them regardless of version.
func (c *Client) headers(conditional bool) []string {
	h := []string{
		auth.AuthorizationHeader(c.token),
		"GData-Version: " + gdataVersion,
		"Content-Type: application/json",
	}
	if conditional {
		h = append(h, "If-Match: *")
	}
	return h
}

func (c *Client) do(ctx context.Context, method, target string, conditional bool, body []byte) (*httpexec.Executor, string, error) {
	exec := c.newExecutor(target)
	exec.Configure(c.headers(conditional), target, nil)
	resp, err := exec.Execute(ctx, method, body)
	c.status = exec.Status()
	return exec, resp, err
}

// feedURL expands the event feed template for a calendar, and for one event
// when eventID is set.
func (c *Client) feedURL(calendarID, eventID string, query url.Values) (string, error) {
	path := "{calendarId}/private/full"
	expansions := map[string]string{"calendarId": calendarID}
	if eventID != "" {
		path += "/{eventId}"
		expansions["eventId"] = eventID
	}

	u, err := url.Parse(googleapi.ResolveRelative(c.cfg.FeedURL, path))
	if err != nil {
		return "", fmt.Errorf("unable to build feed URL: %w", err)
	}
	googleapi.Expand(u, expansions)

	if query == nil {
		query = url.Values{}
	}
	query.Set("alt", "jsonc")
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func (c *Client) findQuery(opts FindOptions) (url.Values, error) {
	now := c.now()
	year, month, day := now.Date()

	startMin := opts.Min
	if startMin.IsZero() {
		startMin = time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	}
	startMax := opts.Max
	if startMax.IsZero() {
		startMax = time.Date(year, month, day, 23, 59, 59, 0, now.Location())
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var sortOrder string
	switch opts.Order {
	case "", OrderAscending:
		sortOrder = "ascending"
	case OrderDescending:
		sortOrder = "descending"
	default:
		return nil, fmt.Errorf("find: unknown order %q (want %q or %q)", opts.Order, OrderAscending, OrderDescending)
	}

	return url.Values{
		"orderby":      {"starttime"},
		"sortorder":    {sortOrder},
		"singleevents": {"true"},
		"start-min":    {formatTime(startMin)},
		"start-max":    {formatTime(startMax)},
		"max-results":  {fmt.Sprint(limit)},
	}, nil
}
