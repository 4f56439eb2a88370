package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/zulipmcp/bridge/internal/zulipclient"
)

// ManageStreams implements streams/manage_streams: list/create/update/
// delete/subscribe/unsubscribe with bulk id or name lists.
func (h *Handlers) ManageStreams(ctx context.Context, params map[string]any) (map[string]any, error) {
	action, _ := params["action"].(string)
	bundle, err := h.selectBundle("subscribe", "")
	if err != nil {
		return nil, err
	}

	switch action {
	case "list":
		streams, err := h.Client.GetStreams(ctx, bundle)
		if err != nil {
			return nil, err
		}
		return success(map[string]any{"streams": streams}), nil

	case "create":
		name, _ := params["name"].(string)
		description, _ := params["description"].(string)
		inviteOnly, _ := params["invite_only"].(bool)
		if name == "" {
			return nil, newValidationError("parameter \"name\" is required for create")
		}
		if err := h.Client.CreateStream(ctx, bundle, name, description, inviteOnly); err != nil {
			return nil, err
		}
		return success(nil), nil

	case "update":
		streamID := int64(intParam(params, "stream_id", 0))
		fields := map[string]string{}
		if v, ok := params["description"].(string); ok {
			fields["description"] = v
		}
		if v, ok := params["name"].(string); ok {
			fields["new_name"] = v
		}
		if err := h.Client.UpdateStream(ctx, bundle, streamID, fields); err != nil {
			return nil, err
		}
		return success(nil), nil

	case "delete":
		streamID := int64(intParam(params, "stream_id", 0))
		if err := h.Client.DeleteStream(ctx, bundle, streamID); err != nil {
			return nil, err
		}
		return success(nil), nil

	case "subscribe", "unsubscribe":
		names := stringSlice(params["names"])
		if action == "subscribe" {
			err = h.Client.Subscribe(ctx, bundle, names)
		} else {
			err = h.Client.Unsubscribe(ctx, bundle, names)
		}
		if err != nil {
			return nil, err
		}
		return success(nil), nil

	default:
		return nil, newValidationError(fmt.Sprintf("unknown manage_streams action %q", action))
	}
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ManageTopics implements streams/manage_topics: list and move act on
// a stream's topics; delete, mark_read, mute and unmute are accepted
// but perform no change and return partial_success with a note.
func (h *Handlers) ManageTopics(ctx context.Context, params map[string]any) (map[string]any, error) {
	action, _ := params["action"].(string)
	streamID := int64(intParam(params, "stream_id", 0))
	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}

	switch action {
	case "list":
		topics, err := h.Client.GetTopics(ctx, bundle, streamID)
		if err != nil {
			return nil, err
		}
		return success(map[string]any{"topics": topics}), nil

	case "move":
		topic, _ := params["topic"].(string)
		targetStreamID := int64(intParam(params, "target_stream_id", 0))
		if targetStreamID == 0 {
			targetStreamID = streamID
		}
		propagate, _ := params["propagation_mode"].(string)
		if propagate == "" {
			propagate = "change_all"
		}
		messageID := int64(intParam(params, "anchor_message_id", 0))
		if err := h.Client.EditMessage(ctx, bundle, messageID, "", topic, targetStreamID, propagate); err != nil {
			return nil, err
		}
		return success(nil), nil

	case "delete", "mark_read", "mute", "unmute":
		return partialSuccess(fmt.Sprintf("topic action %q has no dedicated Zulip endpoint in this client", action), nil), nil

	default:
		return nil, newValidationError(fmt.Sprintf("unknown manage_topics action %q", action))
	}
}

// GetStreamInfo implements streams/get_stream_info.
func (h *Handlers) GetStreamInfo(ctx context.Context, params map[string]any) (map[string]any, error) {
	streamID := int64(intParam(params, "stream_id", 0))
	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	streams, err := h.Client.GetStreams(ctx, bundle)
	if err != nil {
		return nil, err
	}
	for _, s := range streams {
		if id, ok := s["stream_id"].(float64); ok && int64(id) == streamID {
			result := map[string]any{"stream": s}
			if includes, ok := params["include"].([]any); ok {
				for _, inc := range includes {
					switch inc {
					case "topics":
						topics, terr := h.Client.GetTopics(ctx, bundle, streamID)
						if terr == nil {
							result["topics"] = topics
						}
					}
				}
			}
			return success(result), nil
		}
	}
	return nil, newValidationError(fmt.Sprintf("stream %d not found", streamID))
}

// StreamAnalytics implements streams/stream_analytics: computed
// aggregates over a time window, a pure transformation over search
// results.
func (h *Handlers) StreamAnalytics(ctx context.Context, params map[string]any) (map[string]any, error) {
	streamName, _ := params["stream"].(string)
	days := intParam(params, "days", 7)

	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	narrow := zulipclient.BuildNarrow(nil, streamName, "", "", time.Duration(days)*24*time.Hour, time.Now())
	messages, err := h.Client.GetMessages(ctx, bundle, narrow, "newest", 1000, 0)
	if err != nil {
		return nil, err
	}

	senders := make(map[string]bool)
	topics := make(map[string]bool)
	byHour := make(map[int]int)
	for _, m := range messages {
		if sender, ok := m["sender_email"].(string); ok {
			senders[sender] = true
		}
		if topic, ok := m["subject"].(string); ok {
			topics[topic] = true
		}
		if ts, ok := m["timestamp"].(float64); ok {
			byHour[time.Unix(int64(ts), 0).UTC().Hour()]++
		}
	}

	return success(map[string]any{
		"message_count":  len(messages),
		"unique_senders": len(senders),
		"topic_count":    len(topics),
		"activity_by_hour": byHour,
	}), nil
}

// ManageStreamSettings implements streams/manage_stream_settings:
// per-user notification preferences and color, never mutating shared
// stream state.
func (h *Handlers) ManageStreamSettings(ctx context.Context, params map[string]any) (map[string]any, error) {
	streamID := int64(intParam(params, "stream_id", 0))
	bundle, err := h.selectBundle("subscribe", "")
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if v, ok := params["color"].(string); ok {
		fields["color"] = v
	}
	if v, ok := params["notifications"].(bool); ok {
		fields["push_notifications"] = v
	}
	// Per-user subscription settings patch the caller's own subscription
	// row, distinct from UpdateStream's shared-state PATCH.
	changes := make([]map[string]any, 0, len(fields))
	for property, value := range fields {
		changes = append(changes, map[string]any{"stream_id": streamID, "property": property, "value": value})
	}
	data, _ := json.Marshal(changes)
	form := url.Values{"subscription_data": {string(data)}}
	if _, err := h.Client.Do(ctx, bundle, "POST", "/api/v1/users/me/subscriptions/properties", form); err != nil {
		return nil, err
	}
	return success(nil), nil
}
