// Package scheduler delegates scheduled-message lifecycle entirely to
// Zulip's native scheduled-messages endpoints (C11) — no local cron.
package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/zulipmcp/bridge/internal/identity"
	"github.com/zulipmcp/bridge/internal/zulipclient"
)

// PastTimestampError is raised when a caller attempts to schedule a
// message at or before the current wall clock.
type PastTimestampError struct {
	ScheduledAt time.Time
	Now         time.Time
}

func (e *PastTimestampError) Error() string {
	return fmt.Sprintf("scheduler: scheduled_at %s is not after current time %s", e.ScheduledAt, e.Now)
}

// Scheduler wraps the Zulip scheduled-messages API.
type Scheduler struct {
	client *zulipclient.Client
}

// New builds a Scheduler over client.
func New(client *zulipclient.Client) *Scheduler {
	return &Scheduler{client: client}
}

// Create schedules a message, rejecting any timestamp <= now at
// validation time (spec.md §8 property 6).
func (s *Scheduler) Create(ctx context.Context, bundle *identity.Bundle, recipientType, to, topic, content string, scheduledAt time.Time) (int64, error) {
	now := time.Now()
	if !scheduledAt.After(now) {
		return 0, &PastTimestampError{ScheduledAt: scheduledAt, Now: now}
	}

	form := url.Values{
		"type":                   {recipientType},
		"to":                     {to},
		"content":                {content},
		"scheduled_delivery_timestamp": {strconv.FormatInt(scheduledAt.Unix(), 10)},
	}
	if topic != "" {
		form.Set("topic", topic)
	}

	resp, err := s.client.Do(ctx, bundle, "POST", "/api/v1/scheduled_messages", form)
	if err != nil {
		return 0, err
	}
	id, _ := resp.Raw["scheduled_message_id"].(float64)
	return int64(id), nil
}

// List returns the pending scheduled messages for the given identity.
func (s *Scheduler) List(ctx context.Context, bundle *identity.Bundle) (map[string]any, error) {
	resp, err := s.client.Do(ctx, bundle, "GET", "/api/v1/scheduled_messages", nil)
	if err != nil {
		return nil, err
	}
	return resp.Raw, nil
}

// Update edits a pending scheduled message's content and/or timestamp.
func (s *Scheduler) Update(ctx context.Context, bundle *identity.Bundle, scheduledMessageID int64, content string, scheduledAt *time.Time) error {
	if scheduledAt != nil && !scheduledAt.After(time.Now()) {
		return &PastTimestampError{ScheduledAt: *scheduledAt, Now: time.Now()}
	}
	form := url.Values{}
	if content != "" {
		form.Set("content", content)
	}
	if scheduledAt != nil {
		form.Set("scheduled_delivery_timestamp", strconv.FormatInt(scheduledAt.Unix(), 10))
	}
	_, err := s.client.Do(ctx, bundle, "PATCH", fmt.Sprintf("/api/v1/scheduled_messages/%d", scheduledMessageID), form)
	return err
}

// Cancel removes a pending scheduled message.
func (s *Scheduler) Cancel(ctx context.Context, bundle *identity.Bundle, scheduledMessageID int64) error {
	_, err := s.client.Do(ctx, bundle, "DELETE", fmt.Sprintf("/api/v1/scheduled_messages/%d", scheduledMessageID), nil)
	return err
}
