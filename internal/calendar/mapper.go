package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Wire shapes of the JSON-C calendar feed.
type (
	feedEnvelope struct {
		Data *feedData `json:"data"`
	}

	feedData struct {
		TotalResults int         `json:"totalResults"`
		Items        []wireEvent `json:"items"`
	}

	eventEnvelope struct {
		Data *wireEvent `json:"data"`
	}

	wireEvent struct {
		ID       string     `json:"id,omitempty"`
		Title    string     `json:"title"`
		Details  string     `json:"details"`
		Location string     `json:"location"`
		Status   string     `json:"status"`
		When     []wireWhen `json:"when"`
	}

	wireWhen struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
)

// formatTime renders t in the canonical feed timestamp format.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// parseTime accepts feed timestamps (RFC 3339, optionally with fractional
// seconds) and all-day dates.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t, nil
}

// MapInputToPayload builds the JSON body for an event insert.
func MapInputToPayload(in EventInput) ([]byte, error) {
	payload := eventEnvelope{
		Data: &wireEvent{
			Title:    in.Title,
			Details:  in.Details,
			Location: in.Location,
			Status:   in.Status,
			When: []wireWhen{{
				Start: formatTime(in.Start),
				End:   formatTime(in.End),
			}},
		},
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to encode event: %w", err)
	}
	return b, nil
}

// MapFeed converts a feed response into a FindResult. Only id, start, end and
// title are taken from each item.
func MapFeed(body []byte, calendarID string) (FindResult, error) {
	var env feedEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return FindResult{}, fmt.Errorf("unable to decode feed: %w", err)
	}
	if env.Data == nil {
		return FindResult{}, errors.New("unable to decode feed: missing data")
	}

	result := FindResult{
		TotalResults: env.Data.TotalResults,
		Events:       make([]Event, 0, len(env.Data.Items)),
	}
	if result.TotalResults == 0 {
		return result, nil
	}

	for _, item := range env.Data.Items {
		start, end, err := mapWhen(item.When)
		if err != nil {
			return FindResult{}, fmt.Errorf("unable to decode event %s: %w", item.ID, err)
		}
		result.Events = append(result.Events, Event{
			ID:         item.ID,
			CalendarID: calendarID,
			Title:      item.Title,
			Start:      start,
			End:        end,
		})
	}

	return result, nil
}

// MapEventResponse converts a single-event response. In lenient mode decode
// failures and unparsable fields yield zero values instead of an error.
func MapEventResponse(body []byte, calendarID string, lenient bool) (Event, error) {
	var env eventEnvelope
	err := json.Unmarshal(body, &env)
	if err == nil && env.Data == nil {
		err = errors.New("missing data")
	}
	if err != nil {
		if lenient {
			return Event{CalendarID: calendarID}, nil
		}
		return Event{}, fmt.Errorf("unable to decode event: %w", err)
	}

	start, end, err := mapWhen(env.Data.When)
	if err != nil && !lenient {
		return Event{}, fmt.Errorf("unable to decode event: %w", err)
	}

	return Event{
		ID:         env.Data.ID,
		CalendarID: calendarID,
		Title:      env.Data.Title,
		Details:    env.Data.Details,
		Location:   env.Data.Location,
		Status:     env.Data.Status,
		Start:      start,
		End:        end,
	}, nil
}

func mapWhen(when []wireWhen) (time.Time, time.Time, error) {
	if len(when) == 0 {
		return time.Time{}, time.Time{}, nil
	}
	start, err := parseTime(when[0].Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTime(when[0].End)
	if err != nil {
		return start, time.Time{}, err
	}
	return start, end, nil
}
