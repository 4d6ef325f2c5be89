package calendar

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/drewfead/gcalfeed/internal/calendar"

const (
	attrCalendarID = "gcalfeed.calendar_id"
	attrEventID    = "gcalfeed.event_id"
	attrStatus     = "http.response.status_code"
)

// startSpan starts a client span for a feed operation. Spans are no-ops
// unless a tracer provider is installed.
func startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(tracerName)
	return tracer.Start(ctx, "gcalfeed.calendar."+operation,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (c *Client) endSpan(span trace.Span, err error) {
	span.SetAttributes(attribute.Int(attrStatus, c.status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Find lists the events of a calendar between opts.Min and opts.Max.
func (c *Client) Find(ctx context.Context, opts FindOptions) (FindResult, error) {
	ctx, span := startSpan(ctx, "find", attribute.String(attrCalendarID, opts.CalendarID))
	result, err := c.findEvents(ctx, opts)
	c.endSpan(span, err)
	return result, err
}

// Create inserts a single event. Every EventKind takes the same path.
func (c *Client) Create(ctx context.Context, in EventInput) (Event, error) {
	ctx, span := startSpan(ctx, "create", attribute.String(attrCalendarID, in.CalendarID))
	event, err := c.createEvent(ctx, in)
	c.endSpan(span, err)
	return event, err
}

// Update replaces an event by deleting it and creating in. The create runs
// even when the delete fails; in that case the created event is returned
// together with an error wrapping ErrPartialUpdate.
func (c *Client) Update(ctx context.Context, in EventInput) (Event, error) {
	ctx, span := startSpan(ctx, "update",
		attribute.String(attrCalendarID, in.CalendarID),
		attribute.String(attrEventID, in.ID),
	)
	event, err := c.updateEvent(ctx, in)
	c.endSpan(span, err)
	return event, err
}

// Delete removes an event. It reports true only for a 200 response with no
// content.
func (c *Client) Delete(ctx context.Context, calendarID, eventID string) (bool, error) {
	ctx, span := startSpan(ctx, "delete",
		attribute.String(attrCalendarID, calendarID),
		attribute.String(attrEventID, eventID),
	)
	deleted, err := c.deleteEvent(ctx, calendarID, eventID)
	c.endSpan(span, err)
	return deleted, err
}
