package zulipclient

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/zulipmcp/bridge/internal/identity"
)

// MessageEvent is the subset of a Zulip `message` event the correlator
// needs.
type MessageEvent struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	SenderEmail  string `json:"sender_email"`
	Content      string `json:"content"`
	Subject      string `json:"subject"`
	DisplayRecip any    `json:"display_recipient"`
}

// RegisterQueue creates an event queue for the given event types and
// optional narrow, with a lifespan capped at 300s per spec.md §4.5
// Events/register.
func (c *Client) RegisterQueue(ctx context.Context, bundle *identity.Bundle, eventTypes []string, narrow Narrow, lifespanSeconds int) (queueID string, lastEventID int64, err error) {
	if lifespanSeconds <= 0 || lifespanSeconds > 300 {
		lifespanSeconds = 300
	}
	typesJSON, _ := json.Marshal(eventTypes)
	form := url.Values{
		"event_types":             {string(typesJSON)},
		"queue_lifespan_seconds":  {strconv.Itoa(lifespanSeconds)},
	}
	if len(narrow) > 0 {
		narrowJSON, _ := json.Marshal(narrow)
		form.Set("narrow", string(narrowJSON))
	}

	resp, err := c.Do(ctx, bundle, "POST", "/api/v1/register", form)
	if err != nil {
		return "", 0, err
	}
	if qid, ok := resp.Raw["queue_id"].(string); ok {
		queueID = qid
	}
	if leid, ok := resp.Raw["last_event_id"].(float64); ok {
		lastEventID = int64(leid)
	}
	return queueID, lastEventID, nil
}

// QueueExpiredError indicates the event queue expired server-side; the
// caller (C6) should re-register once before backing off.
type QueueExpiredError struct{ QueueID string }

func (e *QueueExpiredError) Error() string { return "zulip: event queue expired: " + e.QueueID }

// GetEvents long-polls queueID for events newer than lastEventID.
func (c *Client) GetEvents(ctx context.Context, bundle *identity.Bundle, queueID string, lastEventID int64) ([]MessageEvent, int64, error) {
	form := url.Values{
		"queue_id":      {queueID},
		"last_event_id": {strconv.FormatInt(lastEventID, 10)},
		"dont_block":    {"false"},
	}
	resp, err := c.Do(ctx, bundle, "GET", "/api/v1/events", form)
	if err != nil {
		if nf, ok := err.(*NotFoundError); ok && nf.Resource == "/api/v1/events" {
			return nil, lastEventID, &QueueExpiredError{QueueID: queueID}
		}
		return nil, lastEventID, err
	}
	if resp.Result == "error" {
		return nil, lastEventID, &QueueExpiredError{QueueID: queueID}
	}

	rawEvents, _ := resp.Raw["events"].([]any)
	events := make([]MessageEvent, 0, len(rawEvents))
	newLastID := lastEventID
	for _, re := range rawEvents {
		blob, _ := json.Marshal(re)
		var ev MessageEvent
		if err := json.Unmarshal(blob, &ev); err != nil {
			continue
		}
		if ev.ID > newLastID {
			newLastID = ev.ID
		}
		if ev.Type == "message" {
			events = append(events, ev)
		}
	}
	return events, newLastID, nil
}

// DeregisterQueue explicitly releases queueID.
func (c *Client) DeregisterQueue(ctx context.Context, bundle *identity.Bundle, queueID string) error {
	form := url.Values{"queue_id": {queueID}}
	_, err := c.Do(ctx, bundle, "DELETE", "/api/v1/events", form)
	return err
}
