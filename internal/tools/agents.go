package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/zulipmcp/bridge/internal/store"
)

// RegisterAgent implements agents/register_agent: upsert the agent
// row, always insert a fresh instance, and idempotently ensure a
// dedicated channel/topic exists for it.
func (h *Handlers) RegisterAgent(ctx context.Context, params map[string]any) (map[string]any, error) {
	agentID, _ := params["agent_id"].(string)
	agentType, _ := params["agent_type"].(string)
	sessionID, _ := params["session_id"].(string)
	projectDir, _ := params["project_dir"].(string)
	host, _ := params["host"].(string)
	metadata, _ := params["metadata"].(string)
	if agentID == "" || agentType == "" {
		return nil, newValidationError("parameters \"agent_id\" and \"agent_type\" are required")
	}

	instance, err := h.Store.Agents.Register(ctx, agentID, agentType, sessionID, projectDir, host, metadata)
	if err != nil {
		return nil, err
	}

	channelTopic := h.agentChannelTopic(agentID)
	bundle, err := h.selectBundle("send", "")
	if err == nil {
		// Create-on-subscribe: a no-op subscription when the channel exists.
		_ = h.Client.CreateStream(ctx, bundle, h.AgentChannelPrefix, "", false)
		// Best-effort: post a marker message establishing the topic if it
		// doesn't already exist. Zulip creates topics implicitly on first
		// send, so this call is itself the "idempotent creation".
		_, _ = h.Client.SendMessage(ctx, bundle, "stream", h.AgentChannelPrefix, channelTopic,
			fmt.Sprintf("Agent `%s` (%s) registered.", agentID, agentType))
	}

	return success(map[string]any{
		"instance_id": instance.InstanceID,
		"channel":     h.AgentChannelPrefix,
		"topic":       channelTopic,
	}), nil
}

func (h *Handlers) agentChannelTopic(agentID string) string {
	return fmt.Sprintf("agent/%s", agentID)
}

// AgentMessage implements agents/agent_message: posts to the agent's
// dedicated topic unless AFK gating blocks it, per spec.md §4.7 — an
// agent may only message while the operator is away, overridable via
// AFKOverrideEnv for local development.
func (h *Handlers) AgentMessage(ctx context.Context, params map[string]any) (map[string]any, error) {
	agentID, _ := params["agent_id"].(string)
	content, _ := params["content"].(string)
	if agentID == "" || content == "" {
		return nil, newValidationError("parameters \"agent_id\" and \"content\" are required")
	}

	if h.AFK != nil && !overrideActive() {
		afk, err := h.AFK.IsAFK(ctx)
		if err != nil {
			return nil, err
		}
		if !afk {
			return skipped("operator is present; agent_message is gated while AFK is disabled"), nil
		}
	}

	bundle, err := h.selectBundle("send", "")
	if err != nil {
		return nil, err
	}
	topic := h.agentChannelTopic(agentID)
	id, err := h.Client.SendMessage(ctx, bundle, "stream", h.AgentChannelPrefix, topic, content)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"message_id": id, "topic": topic}), nil
}

// RequestUserInput implements agents/request_user_input: writes a
// pending row and posts the formatted prompt to the agent's topic.
func (h *Handlers) RequestUserInput(ctx context.Context, params map[string]any) (map[string]any, error) {
	agentID, _ := params["agent_id"].(string)
	question, _ := params["question"].(string)
	contextStr, _ := params["context"].(string)
	options, _ := params["options"].(string)
	if agentID == "" || question == "" {
		return nil, newValidationError("parameters \"agent_id\" and \"question\" are required")
	}

	requestID, err := h.Store.Requests.Create(ctx, agentID, question, contextStr, options)
	if err != nil {
		return nil, err
	}

	bundle, err := h.selectBundle("send", "")
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("**Input requested** `%s`\n\n%s", requestID, question)
	if options != "" {
		prompt += "\n\nOptions: " + options
	}
	topic := h.agentChannelTopic(agentID)
	if _, err := h.Client.SendMessage(ctx, bundle, "stream", h.AgentChannelPrefix, topic, prompt); err != nil {
		return nil, err
	}

	return success(map[string]any{"request_id": requestID}), nil
}

// WaitForResponse implements agents/wait_for_response: polls the
// request row at a fixed interval until answered, cancelled, or
// timeoutSeconds elapses, transitioning to timeout itself at the
// deadline.
func (h *Handlers) WaitForResponse(ctx context.Context, params map[string]any) (map[string]any, error) {
	requestID, _ := params["request_id"].(string)
	if requestID == "" {
		return nil, newValidationError("parameter \"request_id\" is required")
	}
	timeoutSeconds := intParam(params, "timeout_seconds", 300)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)

	for {
		req, err := h.Store.Requests.Get(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if req.Status == store.RequestAnswered || req.Status == store.RequestCancelled {
			return success(map[string]any{"request_status": string(req.Status), "response": req.Response, "responded_at": req.RespondedAt}), nil
		}
		if time.Now().After(deadline) {
			_ = h.Store.Requests.Transition(ctx, requestID, store.RequestTimeout, "")
			return success(map[string]any{"request_status": string(store.RequestTimeout)}), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// StartTask implements agents/start_task.
func (h *Handlers) StartTask(ctx context.Context, params map[string]any) (map[string]any, error) {
	agentID, _ := params["agent_id"].(string)
	name, _ := params["name"].(string)
	description, _ := params["description"].(string)
	if agentID == "" || name == "" {
		return nil, newValidationError("parameters \"agent_id\" and \"name\" are required")
	}
	taskID, err := h.Store.Tasks.Start(ctx, agentID, name, description)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"task_id": taskID}), nil
}

// UpdateTaskProgress implements agents/update_task_progress.
func (h *Handlers) UpdateTaskProgress(ctx context.Context, params map[string]any) (map[string]any, error) {
	taskID, _ := params["task_id"].(string)
	progress := intParam(params, "progress", -1)
	metrics, _ := params["metrics"].(string)
	if taskID == "" || progress < 0 {
		return nil, newValidationError("parameters \"task_id\" and non-negative \"progress\" are required")
	}
	if err := h.Store.Tasks.UpdateProgress(ctx, taskID, progress, metrics); err != nil {
		return nil, err
	}
	return success(nil), nil
}

// CompleteTask implements agents/complete_task.
func (h *Handlers) CompleteTask(ctx context.Context, params map[string]any) (map[string]any, error) {
	taskID, _ := params["task_id"].(string)
	statusStr, _ := params["status"].(string)
	outputs, _ := params["outputs"].(string)
	if taskID == "" {
		return nil, newValidationError("parameter \"task_id\" is required")
	}
	status := store.TaskCompleted
	if statusStr == "failed" {
		status = store.TaskFailed
	}
	if err := h.Store.Tasks.Complete(ctx, taskID, status, outputs); err != nil {
		return nil, err
	}
	return success(nil), nil
}

// ListInstances implements agents/list_instances.
func (h *Handlers) ListInstances(ctx context.Context, params map[string]any) (map[string]any, error) {
	limit := intParam(params, "limit", 50)
	instances, err := h.Store.Agents.ListInstances(ctx, limit)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"instances": instances}), nil
}

// AFKStatus / AFKEnable / AFKDisable implement agents/afk_* controls.
func (h *Handlers) AFKStatus(ctx context.Context, params map[string]any) (map[string]any, error) {
	state, err := h.AFK.Status(ctx)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"afk": state}), nil
}

func (h *Handlers) AFKEnable(ctx context.Context, params map[string]any) (map[string]any, error) {
	reason, _ := params["reason"].(string)
	var hours float64
	switch v := params["auto_return_hours"].(type) {
	case float64:
		hours = v
	case int:
		hours = float64(v)
	}
	if err := h.AFK.Enable(ctx, reason, hours); err != nil {
		return nil, err
	}
	return success(nil), nil
}

func (h *Handlers) AFKDisable(ctx context.Context, params map[string]any) (map[string]any, error) {
	if err := h.AFK.Disable(ctx); err != nil {
		return nil, err
	}
	return success(nil), nil
}
