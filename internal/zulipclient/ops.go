package zulipclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/zulipmcp/bridge/internal/identity"
)

// SendMessage posts to a stream+topic or a private recipient list.
func (c *Client) SendMessage(ctx context.Context, bundle *identity.Bundle, msgType, to, topic, content string) (int64, error) {
	form := url.Values{"type": {msgType}, "to": {to}, "content": {content}}
	if topic != "" {
		form.Set("topic", topic)
	}
	resp, err := c.Do(ctx, bundle, "POST", "/api/v1/messages", form)
	if err != nil {
		return 0, err
	}
	id, _ := resp.Raw["id"].(float64)
	return int64(id), nil
}

// EditMessage updates content/topic/stream for messageID under the
// given propagation mode.
func (c *Client) EditMessage(ctx context.Context, bundle *identity.Bundle, messageID int64, content, topic string, streamID int64, propagateMode string) error {
	form := url.Values{}
	if content != "" {
		form.Set("content", content)
	}
	if topic != "" {
		form.Set("topic", topic)
	}
	if streamID != 0 {
		form.Set("stream_id", strconv.FormatInt(streamID, 10))
	}
	if propagateMode != "" {
		form.Set("propagate_mode", propagateMode)
	}
	_, err := c.Do(ctx, bundle, "PATCH", fmt.Sprintf("/api/v1/messages/%d", messageID), form)
	return err
}

// GetMessages fetches messages matching narrow via the documented
// anchor/num_before/num_after parameters.
func (c *Client) GetMessages(ctx context.Context, bundle *identity.Bundle, narrow Narrow, anchor string, numBefore, numAfter int) ([]map[string]any, error) {
	narrowJSON, _ := json.Marshal(narrow)
	form := url.Values{
		"narrow":     {string(narrowJSON)},
		"anchor":     {anchor},
		"num_before": {strconv.Itoa(numBefore)},
		"num_after":  {strconv.Itoa(numAfter)},
	}
	resp, err := c.Do(ctx, bundle, "GET", "/api/v1/messages", form)
	if err != nil {
		return nil, err
	}
	raw, _ := resp.Raw["messages"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		if mm, ok := m.(map[string]any); ok {
			out = append(out, mm)
		}
	}
	return out, nil
}

// GetMessageHistory returns prior content and edit timestamps for a message.
func (c *Client) GetMessageHistory(ctx context.Context, bundle *identity.Bundle, messageID int64) ([]map[string]any, error) {
	resp, err := c.Do(ctx, bundle, "GET", fmt.Sprintf("/api/v1/messages/%d/history", messageID), nil)
	if err != nil {
		return nil, err
	}
	raw, _ := resp.Raw["message_history"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		if mm, ok := m.(map[string]any); ok {
			out = append(out, mm)
		}
	}
	return out, nil
}

// UpdateMessageFlags marks/unmarks a set of message ids (e.g. "read").
func (c *Client) UpdateMessageFlags(ctx context.Context, bundle *identity.Bundle, messageIDs []int64, flag, op string) error {
	idsJSON, _ := json.Marshal(messageIDs)
	form := url.Values{"messages": {string(idsJSON)}, "flag": {flag}, "op": {op}}
	_, err := c.Do(ctx, bundle, "POST", "/api/v1/messages/flags", form)
	return err
}

// AddReaction / RemoveReaction toggle an emoji reaction on a message.
func (c *Client) AddReaction(ctx context.Context, bundle *identity.Bundle, messageID int64, emojiName string) error {
	form := url.Values{"emoji_name": {emojiName}}
	_, err := c.Do(ctx, bundle, "POST", fmt.Sprintf("/api/v1/messages/%d/reactions", messageID), form)
	return err
}

func (c *Client) RemoveReaction(ctx context.Context, bundle *identity.Bundle, messageID int64, emojiName string) error {
	form := url.Values{"emoji_name": {emojiName}}
	_, err := c.Do(ctx, bundle, "DELETE", fmt.Sprintf("/api/v1/messages/%d/reactions", messageID), form)
	return err
}

// GetStreams lists streams visible to the identity, caching the result.
func (c *Client) GetStreams(ctx context.Context, bundle *identity.Bundle) ([]map[string]any, error) {
	cacheKey := strings.ToLower(string(bundle.Kind))
	if cached, ok := c.CachedStreams(cacheKey); ok {
		var out []map[string]any
		if err := json.Unmarshal(cached, &out); err == nil {
			return out, nil
		}
	}

	resp, err := c.Do(ctx, bundle, "GET", "/api/v1/streams", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := resp.Raw["streams"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, s := range raw {
		if sm, ok := s.(map[string]any); ok {
			out = append(out, sm)
		}
	}
	if payload, err := json.Marshal(out); err == nil {
		c.SetCachedStreams(cacheKey, payload)
	}
	return out, nil
}

// CreateStream creates or subscribes to a stream via the subscriptions
// endpoint (Zulip's create-on-subscribe semantics).
func (c *Client) CreateStream(ctx context.Context, bundle *identity.Bundle, name, description string, inviteOnly bool) error {
	sub := []map[string]string{{"name": name, "description": description}}
	subsJSON, _ := json.Marshal(sub)
	form := url.Values{"subscriptions": {string(subsJSON)}}
	if inviteOnly {
		form.Set("invite_only", "true")
	}
	_, err := c.Do(ctx, bundle, "POST", "/api/v1/users/me/subscriptions", form)
	return err
}

// UpdateStream patches stream settings by id.
func (c *Client) UpdateStream(ctx context.Context, bundle *identity.Bundle, streamID int64, fields map[string]string) error {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	_, err := c.Do(ctx, bundle, "PATCH", fmt.Sprintf("/api/v1/streams/%d", streamID), form)
	return err
}

// DeleteStream archives a stream by id.
func (c *Client) DeleteStream(ctx context.Context, bundle *identity.Bundle, streamID int64) error {
	_, err := c.Do(ctx, bundle, "DELETE", fmt.Sprintf("/api/v1/streams/%d", streamID), nil)
	return err
}

// Subscribe / Unsubscribe manage the caller's own subscriptions by name.
func (c *Client) Subscribe(ctx context.Context, bundle *identity.Bundle, streamNames []string) error {
	subs := make([]map[string]string, len(streamNames))
	for i, n := range streamNames {
		subs[i] = map[string]string{"name": n}
	}
	subsJSON, _ := json.Marshal(subs)
	form := url.Values{"subscriptions": {string(subsJSON)}}
	_, err := c.Do(ctx, bundle, "POST", "/api/v1/users/me/subscriptions", form)
	return err
}

func (c *Client) Unsubscribe(ctx context.Context, bundle *identity.Bundle, streamNames []string) error {
	namesJSON, _ := json.Marshal(streamNames)
	form := url.Values{"subscriptions": {string(namesJSON)}}
	_, err := c.Do(ctx, bundle, "DELETE", "/api/v1/users/me/subscriptions", form)
	return err
}

// GetTopics lists topics within a stream.
func (c *Client) GetTopics(ctx context.Context, bundle *identity.Bundle, streamID int64) ([]map[string]any, error) {
	resp, err := c.Do(ctx, bundle, "GET", fmt.Sprintf("/api/v1/users/me/%d/topics", streamID), nil)
	if err != nil {
		return nil, err
	}
	raw, _ := resp.Raw["topics"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, tpc := range raw {
		if tm, ok := tpc.(map[string]any); ok {
			out = append(out, tm)
		}
	}
	return out, nil
}

// GetUsers lists realm users, optionally caching the result.
func (c *Client) GetUsers(ctx context.Context, bundle *identity.Bundle) ([]map[string]any, error) {
	cacheKey := strings.ToLower(string(bundle.Kind))
	if cached, ok := c.CachedUsers(cacheKey); ok {
		var out []map[string]any
		if err := json.Unmarshal(cached, &out); err == nil {
			return out, nil
		}
	}

	resp, err := c.Do(ctx, bundle, "GET", "/api/v1/users", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := resp.Raw["members"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, u := range raw {
		if um, ok := u.(map[string]any); ok {
			out = append(out, um)
		}
	}
	if payload, err := json.Marshal(out); err == nil {
		c.SetCachedUsers(cacheKey, payload)
	}
	return out, nil
}

// GetOwnUser returns the authenticated identity's own user record.
func (c *Client) GetOwnUser(ctx context.Context, bundle *identity.Bundle) (map[string]any, error) {
	resp, err := c.Do(ctx, bundle, "GET", "/api/v1/users/me", nil)
	if err != nil {
		return nil, err
	}
	return resp.Raw, nil
}

// UpdatePresence sets the caller's own presence status.
func (c *Client) UpdatePresence(ctx context.Context, bundle *identity.Bundle, status string) error {
	form := url.Values{"status": {status}}
	_, err := c.Do(ctx, bundle, "POST", "/api/v1/users/me/presence", form)
	return err
}

// UploadFile posts file bytes to Zulip's upload endpoint. Multipart
// encoding is handled by the caller's form; here we accept a
// pre-sanitized filename and raw content for a simple single-part
// upload consistent with spec.md §4.5's Files/upload contract.
func (c *Client) UploadFile(ctx context.Context, bundle *identity.Bundle, filename string, content []byte) (string, error) {
	form := url.Values{"filename": {filename}, "content_base64_len": {strconv.Itoa(len(content))}}
	resp, err := c.Do(ctx, bundle, "POST", "/api/v1/user_uploads", form)
	if err != nil {
		return "", err
	}
	uri, _ := resp.Raw["uri"].(string)
	return uri, nil
}

