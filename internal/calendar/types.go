package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotConnected is returned by every operation on a client whose login failed.
	ErrNotConnected = errors.New("no connection has been established")
	// ErrPartialUpdate is returned by Update when the replacement event was
	// created but the original could not be deleted.
	ErrPartialUpdate = errors.New("event created but original was not deleted")
)

// Event is a calendar entry as reported by the feed.
type Event struct {
	ID         string    `json:"id" yaml:"id"`
	CalendarID string    `json:"calendar_id,omitempty" yaml:"calendar_id,omitempty"`
	Title      string    `json:"title" yaml:"title"`
	Details    string    `json:"details,omitempty" yaml:"details,omitempty"`
	Location   string    `json:"location,omitempty" yaml:"location,omitempty"`
	Status     string    `json:"status,omitempty" yaml:"status,omitempty"`
	Start      time.Time `json:"start" yaml:"start"`
	End        time.Time `json:"end" yaml:"end"`
}

// FindResult is one page of events.
type FindResult struct {
	TotalResults int     `json:"totalResults" yaml:"totalResults"`
	Events       []Event `json:"events" yaml:"events"`
}

// Order is the sort direction of Find results.
type Order string

const (
	OrderAscending  Order = "a"
	OrderDescending Order = "d"
)

// DefaultLimit is the page size Find uses when FindOptions.Limit is zero.
const DefaultLimit = 50

// FindOptions selects events by start time. Zero Min and Max default to the
// start and end of the current local day.
type FindOptions struct {
	CalendarID string
	Min        time.Time
	Max        time.Time
	Limit      int
	Order      Order
}

// EventKind is accepted for compatibility with callers that distinguish quick
// and recurring events. Every kind is created as a single event.
type EventKind int

const (
	KindSingle EventKind = iota + 1
	KindQuick
	KindRecurring
)

// EventInput describes an event to create, or the replacement for an event
// being updated (ID set).
type EventInput struct {
	ID         string
	CalendarID string
	Title      string
	Details    string
	Location   string
	Status     string
	Start      time.Time
	End        time.Time
	Kind       EventKind
}

// ValidationError reports required options that were not supplied.
type ValidationError struct {
	Op      string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required option(s): %s", e.Op, strings.Join(e.Missing, ", "))
}

type requirement struct {
	name  string
	empty bool
}

func checkRequired(op string, reqs ...requirement) error {
	var missing []string
	for _, r := range reqs {
		if r.empty {
			missing = append(missing, r.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Op: op, Missing: missing}
}

func (in EventInput) validateCreate(op string) error {
	return checkRequired(op,
		requirement{"title", in.Title == ""},
		requirement{"start", in.Start.IsZero()},
		requirement{"end", in.End.IsZero()},
		requirement{"calendar_id", in.CalendarID == ""},
	)
}
