package gdatatest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

const (
	loginPath = "/accounts/ClientLogin"
	feedPath  = "/calendar/feeds/"

	apiVersion = "2.6"
)

// Server is a fake calendar service for testing.
type Server struct {
	*httptest.Server
	mu       sync.RWMutex
	accounts map[string]account                    // email -> account
	tokens   map[string]string                     // auth token -> email
	events   map[string]map[string]*calendar.Event // calendarID -> eventID -> event
	nextID   int
	requests int
	failNext *failure
}

type account struct {
	password string
	token    string
}

type failure struct {
	status  int
	message string
}

type (
	feedResponse struct {
		APIVersion string   `json:"apiVersion"`
		Data       feedData `json:"data"`
	}

	feedData struct {
		TotalResults int         `json:"totalResults"`
		ItemsPerPage int         `json:"itemsPerPage"`
		Items        []wireEvent `json:"items"`
	}

	eventEnvelope struct {
		APIVersion string     `json:"apiVersion,omitempty"`
		Data       *wireEvent `json:"data"`
	}

	wireEvent struct {
		ID       string     `json:"id,omitempty"`
		Title    string     `json:"title"`
		Details  string     `json:"details"`
		Location string     `json:"location"`
		Status   string     `json:"status"`
		Created  string     `json:"created,omitempty"`
		Updated  string     `json:"updated,omitempty"`
		When     []wireWhen `json:"when"`
	}

	wireWhen struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}

	errorEnvelope struct {
		APIVersion string    `json:"apiVersion"`
		Error      errorBody `json:"error"`
	}

	errorBody struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
)

// NewServer creates and starts a fake calendar service.
func NewServer() *Server {
	s := &Server{
		accounts: make(map[string]account),
		tokens:   make(map[string]string),
		events:   make(map[string]map[string]*calendar.Event),
		nextID:   1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, s.handleLogin)
	mux.HandleFunc(feedPath, s.handleFeeds)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.countRequest()
		writeError(w, http.StatusNotFound, "unsupported endpoint")
	})

	s.Server = httptest.NewServer(mux)
	return s
}

// LoginURL returns the ClientLogin endpoint of the server.
func (s *Server) LoginURL() string {
	return s.URL + loginPath
}

// FeedURL returns the root of the calendar feeds.
func (s *Server) FeedURL() string {
	return s.URL + feedPath
}

// AddAccount registers credentials that the login endpoint accepts. When
// token is empty a random token is issued on every login.
func (s *Server) AddAccount(email, password, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = account{password: password, token: token}
}

// FailNext makes the next feed request fail with status and message.
func (s *Server) FailNext(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = &failure{status: status, message: message}
}

// Requests returns the number of requests the server has received.
func (s *Server) Requests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests
}

func (s *Server) countRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
}

// handleLogin handles POST /accounts/ClientLogin
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.countRequest()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error=BadAuthentication", http.StatusBadRequest)
		return
	}

	email := r.PostForm.Get("Email")

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[email]
	if !ok || acct.password != r.PostForm.Get("Passwd") || r.PostForm.Get("service") != "cl" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "Error=BadAuthentication\n")
		return
	}

	token := acct.token
	if token == "" {
		token = uuid.NewString()
	}
	s.tokens[token] = email

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "SID=%s\nLSID=%s\nAuth=%s\n", uuid.NewString(), uuid.NewString(), token)
}

// handleFeeds routes /calendar/feeds/{calendarId}/private/full[/{eventId}]
func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	s.countRequest()

	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Token invalid")
		return
	}

	if f := s.takeFailure(); f != nil {
		writeError(w, f.status, f.message)
		return
	}

	// Split the escaped path so identifiers containing '/' survive.
	rest := strings.TrimPrefix(r.URL.EscapedPath(), feedPath)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	for i, p := range parts {
		unescaped, err := url.PathUnescape(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid path")
			return
		}
		parts[i] = unescaped
	}

	if len(parts) < 3 || parts[1] != "private" || parts[2] != "full" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("invalid feed path: %v", parts))
		return
	}
	calendarID := parts[0]

	switch len(parts) {
	case 3:
		switch r.Method {
		case http.MethodGet:
			s.listEvents(w, r, calendarID)
		case http.MethodPost:
			s.insertEvent(w, r, calendarID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case 4:
		eventID := parts[3]
		switch r.Method {
		case http.MethodGet:
			s.getEvent(w, calendarID, eventID)
		case http.MethodPut:
			s.updateEvent(w, r, calendarID, eventID)
		case http.MethodDelete:
			s.deleteEvent(w, r, calendarID, eventID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	default:
		writeError(w, http.StatusNotFound, "invalid feed path")
	}
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "GoogleLogin auth=")
	if !ok || token == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok = s.tokens[token]
	return ok
}

func (s *Server) takeFailure() *failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.failNext
	s.failNext = nil
	return f
}

// insertEvent handles POST /calendar/feeds/{calendarId}/private/full
func (s *Server) insertEvent(w http.ResponseWriter, r *http.Request, calendarID string) {
	var env eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Data == nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event := fromWire(env.Data)
	event.Id = fmt.Sprintf("event%d", s.nextID)
	s.nextID++

	if event.Status == "" {
		event.Status = "confirmed"
	}
	event.Created = time.Now().UTC().Format(time.RFC3339)
	event.Updated = event.Created

	if s.events[calendarID] == nil {
		s.events[calendarID] = make(map[string]*calendar.Event)
	}
	s.events[calendarID][event.Id] = event

	writeJSON(w, http.StatusCreated, eventEnvelope{APIVersion: apiVersion, Data: toWire(event)})
}

// listEvents handles GET /calendar/feeds/{calendarId}/private/full
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request, calendarID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := r.URL.Query()

	var startMin, startMax time.Time
	var err error
	if v := query.Get("start-min"); v != "" {
		if startMin, err = parseTime(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid start-min")
			return
		}
	}
	if v := query.Get("start-max"); v != "" {
		if startMax, err = parseTime(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid start-max")
			return
		}
	}

	var events []*calendar.Event
	for _, evt := range s.events[calendarID] {
		start := startOf(evt)
		if !startMin.IsZero() && start.Before(startMin) {
			continue
		}
		if !startMax.IsZero() && start.After(startMax) {
			continue
		}
		events = append(events, evt)
	}

	descending := false
	switch query.Get("sortorder") {
	case "d", "descending":
		descending = true
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := startOf(events[i]), startOf(events[j])
		if a.Equal(b) {
			return events[i].Id < events[j].Id
		}
		if descending {
			return a.After(b)
		}
		return a.Before(b)
	})

	total := len(events)
	if v := query.Get("max-results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid max-results")
			return
		}
		if n < len(events) {
			events = events[:n]
		}
	}

	items := make([]wireEvent, 0, len(events))
	for _, evt := range events {
		items = append(items, *toWire(evt))
	}

	writeJSON(w, http.StatusOK, feedResponse{
		APIVersion: apiVersion,
		Data: feedData{
			TotalResults: total,
			ItemsPerPage: len(items),
			Items:        items,
		},
	})
}

// getEvent handles GET /calendar/feeds/{calendarId}/private/full/{eventId}
func (s *Server) getEvent(w http.ResponseWriter, calendarID, eventID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event := s.events[calendarID][eventID]
	if event == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	writeJSON(w, http.StatusOK, eventEnvelope{APIVersion: apiVersion, Data: toWire(event)})
}

// updateEvent handles PUT /calendar/feeds/{calendarId}/private/full/{eventId}
func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request, calendarID, eventID string) {
	if r.Header.Get("If-Match") == "" {
		writeError(w, http.StatusPreconditionFailed, "If-Match header required")
		return
	}

	var env eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Data == nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.events[calendarID][eventID]
	if existing == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	updated := fromWire(env.Data)
	updated.Id = eventID
	updated.Created = existing.Created
	updated.Updated = time.Now().UTC().Format(time.RFC3339)
	s.events[calendarID][eventID] = updated

	writeJSON(w, http.StatusOK, eventEnvelope{APIVersion: apiVersion, Data: toWire(updated)})
}

// deleteEvent handles DELETE /calendar/feeds/{calendarId}/private/full/{eventId}
func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request, calendarID, eventID string) {
	if r.Header.Get("If-Match") == "" {
		writeError(w, http.StatusPreconditionFailed, "If-Match header required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events[calendarID][eventID] == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	delete(s.events[calendarID], eventID)
	w.WriteHeader(http.StatusOK)
}

// Reset clears all events, tokens and pending failures. Accounts are kept.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]map[string]*calendar.Event)
	s.tokens = make(map[string]string)
	s.nextID = 1
	s.requests = 0
	s.failNext = nil
}

// GetEvents returns all events for a calendar (for test assertions).
func (s *Server) GetEvents(calendarID string) []*calendar.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*calendar.Event
	for _, evt := range s.events[calendarID] {
		events = append(events, evt)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Id < events[j].Id })
	return events
}

// AddEvent adds a pre-configured event to the server (for test setup).
func (s *Server) AddEvent(calendarID string, event *calendar.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Id == "" {
		event.Id = fmt.Sprintf("event%d", s.nextID)
		s.nextID++
	}

	if s.events[calendarID] == nil {
		s.events[calendarID] = make(map[string]*calendar.Event)
	}
	s.events[calendarID][event.Id] = event
}

func fromWire(w *wireEvent) *calendar.Event {
	event := &calendar.Event{
		Summary:     w.Title,
		Description: w.Details,
		Location:    w.Location,
		Status:      w.Status,
	}
	if len(w.When) > 0 {
		event.Start = toDateTime(w.When[0].Start)
		event.End = toDateTime(w.When[0].End)
	}
	return event
}

func toWire(e *calendar.Event) *wireEvent {
	w := &wireEvent{
		ID:       e.Id,
		Title:    e.Summary,
		Details:  e.Description,
		Location: e.Location,
		Status:   e.Status,
		Created:  e.Created,
		Updated:  e.Updated,
	}
	if e.Start != nil || e.End != nil {
		w.When = []wireWhen{{Start: fromDateTime(e.Start), End: fromDateTime(e.End)}}
	}
	return w
}

func toDateTime(s string) *calendar.EventDateTime {
	if len(s) == len("2006-01-02") {
		return &calendar.EventDateTime{Date: s}
	}
	return &calendar.EventDateTime{DateTime: s}
}

func fromDateTime(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}

func startOf(e *calendar.Event) time.Time {
	t, _ := parseTime(fromDateTime(e.Start))
	return t
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{
		APIVersion: apiVersion,
		Error:      errorBody{Code: status, Message: message},
	})
}
