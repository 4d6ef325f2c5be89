// Package gdatatest provides a fake Google Calendar data API for testing.
//
// The server speaks the two halves of the legacy protocol that gcalfeed uses:
// the ClientLogin endpoint and the JSON-C event feed. Tests run without
// credentials or network access.
//
// # Supported Operations
//
//   - Login: POST /accounts/ClientLogin (form encoded)
//   - List Events: GET /calendar/feeds/{calendarId}/private/full (start-min, start-max, sortorder, max-results)
//   - Insert Event: POST /calendar/feeds/{calendarId}/private/full
//   - Get Event: GET /calendar/feeds/{calendarId}/private/full/{eventId}
//   - Update Event: PUT /calendar/feeds/{calendarId}/private/full/{eventId} (requires If-Match)
//   - Delete Event: DELETE /calendar/feeds/{calendarId}/private/full/{eventId} (requires If-Match)
//
// Feed requests must carry an "Authorization: GoogleLogin auth=<token>"
// header with a token issued by the login endpoint. Errors are returned as
// {"error":{"code":...,"message":...}}.
//
// # Basic Usage
//
//	server := gdatatest.NewServer()
//	defer server.Close()
//
//	server.AddAccount("owner@example.com", "secret", "")
//
//	client := calendar.NewClient(ctx, calendar.Config{
//	    Credentials: auth.Credentials{Username: "owner@example.com", Password: "secret"},
//	    AuthURL:     server.LoginURL(),
//	    FeedURL:     server.FeedURL(),
//	})
//
// # Test Helpers
//
//	// Pre-populate events
//	server.AddEvent("primary", &calendar.Event{Id: "e1", Summary: "Existing Event"})
//
//	// Inspect stored events
//	events := server.GetEvents("primary")
//
//	// Make the next feed request fail
//	server.FailNext(http.StatusInternalServerError, "Backend Error")
//
//	// Count requests, e.g. to assert that no call was made
//	n := server.Requests()
//
//	// Clear events and issued tokens between tests
//	server.Reset()
//
// Events are stored as google.golang.org/api/calendar/v3 Event values.
package gdatatest
