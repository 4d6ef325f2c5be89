package gdatatest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
)

// login returns a token for a freshly registered account.
func login(t *testing.T, server *Server) string {
	t.Helper()

	server.AddAccount("owner@example.com", "secret", "")
	resp, err := http.PostForm(server.LoginURL(), url.Values{
		"Email":   {"owner@example.com"},
		"Passwd":  {"secret"},
		"service": {"cl"},
	})
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, line := range strings.Split(string(body), "\n") {
		if token, ok := strings.CutPrefix(line, "Auth="); ok {
			return token
		}
	}
	t.Fatalf("no Auth token in %q", body)
	return ""
}

func do(t *testing.T, token, method, target string, body string, ifMatch bool) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "GoogleLogin auth="+token)
	req.Header.Set("Content-Type", "application/json")
	if ifMatch {
		req.Header.Set("If-Match", "*")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestMockServer_Login(t *testing.T) {
	server := NewServer()
	defer server.Close()

	server.AddAccount("owner@example.com", "secret", "fixed-token")

	resp, err := http.PostForm(server.LoginURL(), url.Values{
		"Email":   {"owner@example.com"},
		"Passwd":  {"secret"},
		"service": {"cl"},
	})
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Auth=fixed-token\n") {
		t.Errorf("expected pinned token in body, got %q", body)
	}

	resp, err = http.PostForm(server.LoginURL(), url.Values{
		"Email":   {"owner@example.com"},
		"Passwd":  {"wrong"},
		"service": {"cl"},
	})
	if err != nil {
		t.Fatalf("failed to post: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
	if string(body) != "Error=BadAuthentication\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestMockServer_RequiresToken(t *testing.T) {
	server := NewServer()
	defer server.Close()

	resp, _ := do(t, "bogus", http.MethodGet, server.FeedURL()+"primary/private/full", "", false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMockServer_InsertEvent(t *testing.T) {
	server := NewServer()
	defer server.Close()
	token := login(t, server)

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	payload := `{"data":{"title":"Test Event","details":"","location":"Room 1","status":"","when":[{"start":"` +
		start.Format(time.RFC3339) + `","end":"` + start.Add(time.Hour).Format(time.RFC3339) + `"}]}}`

	resp, body := do(t, token, http.MethodPost, server.FeedURL()+"primary/private/full?alt=jsonc", payload, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	var created eventEnvelope
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if created.Data.ID == "" {
		t.Error("expected event ID to be set")
	}
	if created.Data.Title != "Test Event" {
		t.Errorf("expected title 'Test Event', got %q", created.Data.Title)
	}
	if created.Data.Status != "confirmed" {
		t.Errorf("expected status 'confirmed', got %q", created.Data.Status)
	}

	stored := server.GetEvents("primary")
	if len(stored) != 1 || stored[0].Summary != "Test Event" || stored[0].Location != "Room 1" {
		t.Errorf("unexpected stored events %+v", stored)
	}
}

func TestMockServer_ListEvents(t *testing.T) {
	server := NewServer()
	defer server.Close()
	token := login(t, server)

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		server.AddEvent("primary", &calendar.Event{
			Summary: "Event " + string(rune('A'+i)),
			Start:   &calendar.EventDateTime{DateTime: base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)},
			End:     &calendar.EventDateTime{DateTime: base.Add(time.Duration(i+1) * time.Hour).Format(time.RFC3339)},
		})
	}

	query := url.Values{
		"start-min":   {base.Add(time.Hour).Format(time.RFC3339)},
		"start-max":   {base.Add(3 * time.Hour).Format(time.RFC3339)},
		"sortorder":   {"descending"},
		"max-results": {"2"},
	}
	resp, body := do(t, token, http.MethodGet, server.FeedURL()+"primary/private/full?"+query.Encode(), "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if feed.Data.TotalResults != 3 {
		t.Errorf("expected 3 total results, got %d", feed.Data.TotalResults)
	}
	if len(feed.Data.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(feed.Data.Items))
	}
	if feed.Data.Items[0].Title != "Event D" || feed.Data.Items[1].Title != "Event C" {
		t.Errorf("unexpected order: %q, %q", feed.Data.Items[0].Title, feed.Data.Items[1].Title)
	}
}

func TestMockServer_EmptyCalendar(t *testing.T) {
	server := NewServer()
	defer server.Close()
	token := login(t, server)

	_, body := do(t, token, http.MethodGet, server.FeedURL()+"nobody/private/full", "", false)

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if feed.Data.TotalResults != 0 || len(feed.Data.Items) != 0 {
		t.Errorf("expected empty feed, got %+v", feed.Data)
	}
}

func TestMockServer_GetAndUpdateEvent(t *testing.T) {
	server := NewServer()
	defer server.Close()
	token := login(t, server)

	server.AddEvent("primary", &calendar.Event{
		Id:      "test-event-1",
		Summary: "Original",
		Start:   &calendar.EventDateTime{Date: "2024-03-01"},
		End:     &calendar.EventDateTime{Date: "2024-03-02"},
	})

	resp, body := do(t, token, http.MethodGet, server.FeedURL()+"primary/private/full/test-event-1", "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got eventEnvelope
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got.Data.Title != "Original" || got.Data.When[0].Start != "2024-03-01" {
		t.Errorf("unexpected event %+v", got.Data)
	}

	update := `{"data":{"title":"Updated","when":[{"start":"2024-03-05","end":"2024-03-06"}]}}`
	resp, _ = do(t, token, http.MethodPut, server.FeedURL()+"primary/private/full/test-event-1", update, false)
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Errorf("expected 412 without If-Match, got %d", resp.StatusCode)
	}

	resp, _ = do(t, token, http.MethodPut, server.FeedURL()+"primary/private/full/test-event-1", update, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stored := server.GetEvents("primary")
	if len(stored) != 1 || stored[0].Summary != "Updated" || stored[0].Start.Date != "2024-03-05" {
		t.Errorf("unexpected stored events %+v", stored)
	}

	resp, _ = do(t, token, http.MethodGet, server.FeedURL()+"primary/private/full/missing", "", false)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMockServer_DeleteEvent(t *testing.T) {
	server := NewServer()
	defer server.Close()
	token := login(t, server)

	server.AddEvent("primary", &calendar.Event{Id: "to-delete", Summary: "Event to Delete"})

	resp, _ := do(t, token, http.MethodDelete, server.FeedURL()+"primary/private/full/to-delete", "", false)
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Errorf("expected 412 without If-Match, got %d", resp.StatusCode)
	}

	resp, body := do(t, token, http.MethodDelete, server.FeedURL()+"primary/private/full/to-delete", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(body) != 0 {
		t.Errorf("expected empty body, got %q", body)
	}
	if len(server.GetEvents("primary")) != 0 {
		t.Error("expected event to be removed")
	}

	resp, body = do(t, token, http.MethodDelete, server.FeedURL()+"primary/private/full/to-delete", "", true)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"message":"Not Found"`) {
		t.Errorf("expected error envelope, got %s", body)
	}
}

func TestMockServer_FailNext(t *testing.T) {
	server := NewServer()
	defer server.Close()
	token := login(t, server)

	server.FailNext(http.StatusServiceUnavailable, "Backend Error")

	resp, _ := do(t, token, http.MethodGet, server.FeedURL()+"primary/private/full", "", false)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}

	resp, _ = do(t, token, http.MethodGet, server.FeedURL()+"primary/private/full", "", false)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected failure to apply once, got %d", resp.StatusCode)
	}
}

func TestMockServer_EscapedCalendarID(t *testing.T) {
	server := NewServer()
	defer server.Close()
	token := login(t, server)

	calendarID := "en.usa#holiday@group.v.calendar.google.com"
	server.AddEvent(calendarID, &calendar.Event{Id: "h1", Summary: "Holiday"})

	resp, body := do(t, token, http.MethodGet, server.FeedURL()+url.PathEscape(calendarID)+"/private/full", "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if feed.Data.TotalResults != 1 {
		t.Errorf("expected 1 event, got %d", feed.Data.TotalResults)
	}
}

func TestMockServer_Reset(t *testing.T) {
	server := NewServer()
	defer server.Close()
	token := login(t, server)

	server.AddEvent("primary", &calendar.Event{Summary: "Event 1"})
	server.Reset()

	if len(server.GetEvents("primary")) != 0 {
		t.Error("expected no events after reset")
	}
	if server.Requests() != 0 {
		t.Errorf("expected request count reset, got %d", server.Requests())
	}

	resp, _ := do(t, token, http.MethodGet, server.FeedURL()+"primary/private/full", "", false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected issued tokens to be revoked, got %d", resp.StatusCode)
	}
}
