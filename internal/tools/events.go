package tools

import (
	"context"
	"time"

	"github.com/zulipmcp/bridge/internal/zulipclient"
)

// RegisterEventQueue implements events/register.
func (h *Handlers) RegisterEventQueue(ctx context.Context, params map[string]any) (map[string]any, error) {
	eventTypes := stringSlice(params["event_types"])
	if len(eventTypes) == 0 {
		eventTypes = []string{"message"}
	}
	lifespan := intParam(params, "lifespan_seconds", 300)

	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	var narrow zulipclient.Narrow
	if raw, ok := params["narrow"].([]any); ok {
		narrow = decodeNarrow(raw)
	}

	queueID, lastEventID, err := h.Client.RegisterQueue(ctx, bundle, eventTypes, narrow, lifespan)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"queue_id": queueID, "last_event_id": lastEventID}), nil
}

// GetEventQueue implements events/get: a single blocking long-poll
// of a previously registered queue.
func (h *Handlers) GetEventQueue(ctx context.Context, params map[string]any) (map[string]any, error) {
	queueID, _ := params["queue_id"].(string)
	lastEventID := int64(intParam(params, "last_event_id", 0))
	if queueID == "" {
		return nil, newValidationError("parameter \"queue_id\" is required")
	}

	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	events, newLastID, err := h.Client.GetEvents(ctx, bundle, queueID, lastEventID)
	if err != nil {
		if _, expired := err.(*zulipclient.QueueExpiredError); expired {
			return partialSuccess("queue expired, re-register to continue listening", map[string]any{
				"events": []zulipclient.MessageEvent{},
			}), nil
		}
		return nil, err
	}
	return success(map[string]any{"events": events, "last_event_id": newLastID}), nil
}

// ListenForEvents implements events/listen: register, poll until
// duration or event_count is reached, transparently re-registering
// once on queue expiry, per spec.md §4.6 Event Listener semantics.
func (h *Handlers) ListenForEvents(ctx context.Context, params map[string]any) (map[string]any, error) {
	eventTypes := stringSlice(params["event_types"])
	if len(eventTypes) == 0 {
		eventTypes = []string{"message"}
	}
	maxDuration := time.Duration(intParam(params, "duration_seconds", 30)) * time.Second
	maxCount := intParam(params, "event_count", 0)

	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	var narrow zulipclient.Narrow
	if raw, ok := params["narrow"].([]any); ok {
		narrow = decodeNarrow(raw)
	}

	queueID, lastEventID, err := h.Client.RegisterQueue(ctx, bundle, eventTypes, narrow, 300)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Client.DeregisterQueue(ctx, bundle, queueID) }()

	deadline := time.Now().Add(maxDuration)
	collected := make([]zulipclient.MessageEvent, 0, 16)
	reregistered := false

	for time.Now().Before(deadline) {
		if maxCount > 0 && len(collected) >= maxCount {
			break
		}
		events, newLastID, err := h.Client.GetEvents(ctx, bundle, queueID, lastEventID)
		if err != nil {
			if _, expired := err.(*zulipclient.QueueExpiredError); expired && !reregistered {
				reregistered = true
				queueID, lastEventID, err = h.Client.RegisterQueue(ctx, bundle, eventTypes, narrow, 300)
				if err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}
		collected = append(collected, events...)
		lastEventID = newLastID
		if len(events) == 0 {
			time.Sleep(500 * time.Millisecond)
		}
	}

	if maxCount > 0 && len(collected) > maxCount {
		collected = collected[:maxCount]
	}
	return success(map[string]any{"events": collected, "count": len(collected)}), nil
}

// DeregisterEventQueue implements events/deregister.
func (h *Handlers) DeregisterEventQueue(ctx context.Context, params map[string]any) (map[string]any, error) {
	queueID, _ := params["queue_id"].(string)
	if queueID == "" {
		return nil, newValidationError("parameter \"queue_id\" is required")
	}
	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	if err := h.Client.DeregisterQueue(ctx, bundle, queueID); err != nil {
		return nil, err
	}
	return success(nil), nil
}
