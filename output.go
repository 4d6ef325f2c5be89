package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.yaml.in/yaml/v3"

	"github.com/drewfead/gcalfeed/internal/calendar"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatICS  = "ics"

	productID = "-//gcalfeed//EN"
)

func writeOutput(cmd *cli.Command, v any) error {
	return render(cmd.Root().Writer, cmd.String("output"), v, time.Now())
}

// render writes v in format. now stamps iCalendar output.
func render(w io.Writer, format string, v any, now time.Time) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("unable to write JSON: %w", err)
		}
		return nil
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("unable to write YAML: %w", err)
		}
		return enc.Close()
	case formatICS:
		var events []calendar.Event
		switch r := v.(type) {
		case calendar.FindResult:
			events = r.Events
		case calendar.Event:
			events = []calendar.Event{r}
		default:
			return fmt.Errorf("output format %q is only supported for events", format)
		}
		return writeICS(w, events, now)
	default:
		return fmt.Errorf("unknown output format %q (want json, yaml or ics)", format)
	}
}

// writeICS encodes events as a VCALENDAR. Nothing is written when there are
// no events, since an empty calendar is not valid iCalendar.
func writeICS(w io.Writer, events []calendar.Event, now time.Time) error {
	if len(events) == 0 {
		return nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, e := range events {
		vevent := ical.NewComponent(ical.CompEvent)

		uid := e.ID
		if uid == "" {
			uid = uuid.NewString()
		}
		vevent.Props.SetText(ical.PropUID, uid)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

		if e.Title != "" {
			vevent.Props.SetText(ical.PropSummary, e.Title)
		}
		if e.Details != "" {
			vevent.Props.SetText(ical.PropDescription, e.Details)
		}
		if e.Location != "" {
			vevent.Props.SetText(ical.PropLocation, e.Location)
		}
		if !e.Start.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
		}
		if !e.End.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
		}

		cal.Children = append(cal.Children, vevent)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("unable to write iCalendar: %w", err)
	}
	return nil
}
