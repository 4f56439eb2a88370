package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulipmcp/bridge/internal/zulipclient"
)

const maxMessageLength = 10000

// approvedEmoji is the enforced registry for react/unreact, per
// spec.md §4.5 Messaging/react.
var approvedEmoji = map[string]bool{
	"thumbs_up": true, "thumbs_down": true, "heart": true, "tada": true,
	"eyes": true, "white_check_mark": true, "x": true, "rocket": true,
}

// SendMessage implements messaging/send.
func (h *Handlers) SendMessage(ctx context.Context, params map[string]any) (map[string]any, error) {
	content, _ := params["content"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, newValidationError("parameter \"content\" must not be empty")
	}
	if len(content) > maxMessageLength {
		content = content[:maxMessageLength]
	}

	msgType, _ := params["type"].(string)
	if msgType == "" {
		msgType = "stream"
	}
	to, _ := params["to"].(string)
	topic, _ := params["topic"].(string)
	if msgType == "stream" && topic == "" {
		return nil, newValidationError("topic is required when sending to a stream")
	}

	bundle, err := h.selectBundle("send", "")
	if err != nil {
		return nil, err
	}
	id, err := h.Client.SendMessage(ctx, bundle, msgType, to, topic, content)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"message_id": id}), nil
}

// SearchMessages implements messaging/search.
func (h *Handlers) SearchMessages(ctx context.Context, params map[string]any) (map[string]any, error) {
	bundle, err := h.selectBundle("search", "")
	if err != nil {
		return nil, err
	}

	sender, _ := params["sender"].(string)
	if sender != "" && h.Resolver != nil {
		u, rerr := h.Resolver.Resolve(sender)
		if rerr != nil {
			return nil, rerr
		}
		sender = u.Email
	}

	stream, _ := params["stream"].(string)
	topic, _ := params["topic"].(string)

	var since time.Duration
	if days := intParam(params, "last_days", 0); days > 0 {
		since = time.Duration(days) * 24 * time.Hour
	}

	var userNarrow zulipclient.Narrow
	if raw, ok := params["narrow"].([]any); ok {
		userNarrow = decodeNarrow(raw)
	}

	narrow := zulipclient.BuildNarrow(userNarrow, stream, topic, sender, since, time.Now())

	anchor, _ := params["anchor"].(string)
	if anchor == "" {
		anchor = "newest"
	}
	numBefore := intParam(params, "num_before", 20)
	numAfter := intParam(params, "num_after", 0)

	messages, err := h.Client.GetMessages(ctx, bundle, narrow, anchor, numBefore, numAfter)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) == numBefore+numAfter && (numBefore+numAfter) > 0
	return success(map[string]any{"messages": messages, "has_more": hasMore}), nil
}

func decodeNarrow(raw []any) zulipclient.Narrow {
	out := make(zulipclient.Narrow, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		t := zulipclient.Term{}
		t.Operator, _ = m["operator"].(string)
		t.Operand, _ = m["operand"].(string)
		t.Negated, _ = m["negated"].(bool)
		out = append(out, t)
	}
	return out
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case string:
		var n int
		if _, err := fmt.Sscanf(t, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

// EditMessage implements messaging/edit.
func (h *Handlers) EditMessage(ctx context.Context, params map[string]any) (map[string]any, error) {
	messageID := int64(intParam(params, "message_id", 0))
	if messageID == 0 {
		return nil, newValidationError("parameter \"message_id\" is required")
	}
	content, _ := params["content"].(string)
	topic, _ := params["topic"].(string)
	streamID := int64(intParam(params, "stream_id", 0))
	propagate, _ := params["propagation_mode"].(string)
	if propagate == "" {
		propagate = "change_one"
	}

	bundle, err := h.selectBundle("edit_own", "")
	if err != nil {
		return nil, err
	}
	if err := h.Client.EditMessage(ctx, bundle, messageID, content, topic, streamID, propagate); err != nil {
		return nil, err
	}
	return success(nil), nil
}

// BulkOps implements messaging/bulk_ops, enforcing the explicit-id vs.
// narrow-selection mutual exclusion from spec.md §4.5.
func (h *Handlers) BulkOps(ctx context.Context, params map[string]any) (map[string]any, error) {
	op, _ := params["op"].(string)
	_, hasIDs := params["message_ids"]
	_, hasNarrow := params["narrow"]

	impliesAll := op == "mark_all_read"
	if hasIDs && hasNarrow {
		return nil, newValidationError("message_ids and narrow are mutually exclusive")
	}
	if !hasIDs && !hasNarrow && !impliesAll {
		return nil, newValidationError("one of message_ids or narrow is required")
	}

	bundle, err := h.selectBundle("bulk_read", "")
	if err != nil {
		return nil, err
	}

	var ids []int64
	if hasIDs {
		rawIDs, _ := params["message_ids"].([]any)
		for _, r := range rawIDs {
			if f, ok := r.(float64); ok {
				ids = append(ids, int64(f))
			}
		}
	} else if hasNarrow {
		rawNarrow, _ := params["narrow"].([]any)
		narrow := decodeNarrow(rawNarrow)
		messages, err := h.Client.GetMessages(ctx, bundle, narrow, "newest", 1000, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range messages {
			if id, ok := m["id"].(float64); ok {
				ids = append(ids, int64(id))
			}
		}
	}

	flag := "read"
	flagOp := "add"
	switch op {
	case "mark_unread":
		flagOp = "remove"
	case "star":
		flag = "starred"
	case "unstar":
		flag = "starred"
		flagOp = "remove"
	}

	if len(ids) > 0 {
		if err := h.Client.UpdateMessageFlags(ctx, bundle, ids, flag, flagOp); err != nil {
			return nil, err
		}
	}
	return success(map[string]any{"affected": len(ids)}), nil
}

// React / Unreact implement messaging/react and messaging/unreact.
func (h *Handlers) React(ctx context.Context, params map[string]any) (map[string]any, error) {
	return h.reactCommon(ctx, params, true)
}

func (h *Handlers) Unreact(ctx context.Context, params map[string]any) (map[string]any, error) {
	return h.reactCommon(ctx, params, false)
}

func (h *Handlers) reactCommon(ctx context.Context, params map[string]any, add bool) (map[string]any, error) {
	messageID := int64(intParam(params, "message_id", 0))
	emoji, _ := params["emoji_name"].(string)
	if !approvedEmoji[emoji] {
		allowed := make([]string, 0, len(approvedEmoji))
		for e := range approvedEmoji {
			allowed = append(allowed, e)
		}
		return nil, newValidationError(fmt.Sprintf("emoji %q is not in the approved registry", emoji), fmt.Sprintf("allowed: %v", allowed))
	}

	bundle, err := h.selectBundle("react", "")
	if err != nil {
		return nil, err
	}
	if add {
		err = h.Client.AddReaction(ctx, bundle, messageID, emoji)
	} else {
		err = h.Client.RemoveReaction(ctx, bundle, messageID, emoji)
	}
	if err != nil {
		return nil, err
	}
	return success(nil), nil
}

// History implements messaging/history.
func (h *Handlers) History(ctx context.Context, params map[string]any) (map[string]any, error) {
	messageID := int64(intParam(params, "message_id", 0))
	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	history, err := h.Client.GetMessageHistory(ctx, bundle, messageID)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"history": history}), nil
}

// CrossPost implements messaging/cross_post: fetch a source message,
// format an attributed repost per target stream. Format chosen since
// spec.md leaves it unspecified: prefix + "\n\n" + body + "\n\n[source](link)".
func (h *Handlers) CrossPost(ctx context.Context, params map[string]any) (map[string]any, error) {
	sourceMessageID := int64(intParam(params, "source_message_id", 0))
	targetStream, _ := params["target_stream"].(string)
	targetTopic, _ := params["target_topic"].(string)
	prefix, _ := params["prefix"].(string)
	referenceLink, _ := params["reference_link"].(string)

	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	messages, err := h.Client.GetMessages(ctx, bundle, zulipclient.Narrow{
		{Operator: "id", Operand: fmt.Sprintf("%d", sourceMessageID)},
	}, "newest", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, newValidationError("source message not found")
	}
	body, _ := messages[0]["content"].(string)

	formatted := body
	if prefix != "" {
		formatted = prefix + "\n\n" + formatted
	}
	if referenceLink != "" {
		formatted = formatted + "\n\n[source](" + referenceLink + ")"
	}

	sendBundle, err := h.selectBundle("send", "")
	if err != nil {
		return nil, err
	}
	id, err := h.Client.SendMessage(ctx, sendBundle, "stream", targetStream, targetTopic, formatted)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"message_id": id}), nil
}
