// Package mcpserver is the C9 MCP Dispatcher: it exposes the C5 tool
// surface over the Model Context Protocol via github.com/mark3labs/mcp-go,
// running stdio-only (stdout is reserved for the JSON-RPC wire, all
// logging goes to stderr — see internal/telemetry).
package mcpserver

import (
	"context"
	"fmt"

	"github.com/zulipmcp/bridge/internal/identity"
	"github.com/zulipmcp/bridge/internal/resolver"
	"github.com/zulipmcp/bridge/internal/store"
	"github.com/zulipmcp/bridge/internal/tools"
	"github.com/zulipmcp/bridge/internal/validate"
	"github.com/zulipmcp/bridge/internal/zulipclient"
	"github.com/zulipmcp/bridge/pkg/zulipwire"
)

// ToolHandler is the shape every C5 handler satisfies: decode params,
// do work, return a result frame or an error.
type ToolHandler func(ctx context.Context, params map[string]any) (map[string]any, error)

// Dispatcher owns the name -> handler table plus the structural
// validator run ahead of every call, per spec.md §4.4/§4.9.
type Dispatcher struct {
	handlers  map[string]ToolHandler
	validator *validate.SchemaValidator
	schemaFor map[string]string
}

// NewDispatcher builds the dispatch table over h, wiring every named
// tool from spec.md §4.5's seven families.
func NewDispatcher(h *tools.Handlers, validator *validate.SchemaValidator) *Dispatcher {
	d := &Dispatcher{
		handlers:  make(map[string]ToolHandler),
		validator: validator,
		schemaFor: make(map[string]string),
	}

	d.register("messaging_send", h.SendMessage)
	d.register("messaging_search", h.SearchMessages)
	d.register("messaging_edit", h.EditMessage)
	d.register("messaging_bulk_ops", h.BulkOps)
	d.register("messaging_react", h.React)
	d.register("messaging_unreact", h.Unreact)
	d.register("messaging_history", h.History)
	d.register("messaging_cross_post", h.CrossPost)

	d.register("streams_manage", h.ManageStreams)
	d.register("streams_manage_topics", h.ManageTopics)
	d.register("streams_get_info", h.GetStreamInfo)
	d.register("streams_analytics", h.StreamAnalytics)
	d.register("streams_manage_settings", h.ManageStreamSettings)

	d.register("events_register", h.RegisterEventQueue)
	d.register("events_get", h.GetEventQueue)
	d.register("events_listen", h.ListenForEvents)
	d.register("events_deregister", h.DeregisterEventQueue)

	d.register("users_list", h.ListUsers)
	d.register("users_get", h.GetUser)
	d.register("users_own", h.GetOwnUser)
	d.register("users_presence", h.UpdatePresence)
	d.register("users_switch_identity", h.SwitchIdentity)
	d.register("users_manage_groups", h.ManageGroups)

	d.register("search_advanced", h.AdvancedSearch)
	d.register("search_analytics", h.Analytics)
	d.register("search_daily_summary", h.DailySummary)

	d.register("files_upload", h.UploadFile)
	d.register("files_manage", h.ManageFiles)

	d.register("agents_register", h.RegisterAgent)
	d.register("agents_message", h.AgentMessage)
	d.register("agents_request_user_input", h.RequestUserInput)
	d.register("agents_wait_for_response", h.WaitForResponse)
	d.register("agents_start_task", h.StartTask)
	d.register("agents_update_task_progress", h.UpdateTaskProgress)
	d.register("agents_complete_task", h.CompleteTask)
	d.register("agents_list_instances", h.ListInstances)
	d.register("agents_afk_status", h.AFKStatus)
	d.register("agents_afk_enable", h.AFKEnable)
	d.register("agents_afk_disable", h.AFKDisable)

	// Narrow terms recur across several families; one shared schema name.
	for _, name := range []string{"messaging_search", "streams_analytics", "search_advanced", "search_analytics"} {
		d.schemaFor[name] = "narrow_list"
	}

	return d
}

func (d *Dispatcher) register(name string, h ToolHandler) {
	d.handlers[name] = h
}

// Names lists every registered tool name, for server registration.
func (d *Dispatcher) Names() []string {
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	return out
}

// Dispatch runs name's handler after null-dropping and structurally
// validating params, and normalizes every error into a result frame
// carrying an error code, message, and suggestions (spec.md §7) rather
// than propagating raw Go errors to the MCP transport.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	handler, ok := d.handlers[name]
	if !ok {
		return errorFrame(&validate.Error{Code: zulipwire.CodeUnknownTool, Message: "no such tool: " + name}), nil
	}

	validate.DropNulls(params)
	if schemaName, ok := d.schemaFor[name]; ok && d.validator != nil {
		if raw, present := params["narrow"]; present {
			if err := d.validator.ValidateStructure(schemaName, map[string]any{"narrow": raw}); err != nil {
				return errorFrame(err), nil
			}
		}
	}

	result, err := handler(ctx, params)
	if err != nil {
		return errorFrame(err), nil
	}
	return result, nil
}

// errorFrame maps the full spec.md §7 error taxonomy onto the nested
// error frame, forwarding each kind's codes, candidates, recovery, and
// retry metadata rather than collapsing everything to InternalError.
func errorFrame(err error) map[string]any {
	switch e := err.(type) {
	case *validate.Error:
		var recovery *zulipwire.Recovery
		if e.Recovery != nil {
			recovery = &zulipwire.Recovery{Tool: e.Recovery.Tool, Hint: e.Recovery.Hint}
		}
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:        e.Code,
			Message:     e.Message,
			Suggestions: e.Suggestions,
			Recovery:    recovery,
		})

	case *identity.CapabilityDenied:
		var suggestions []string
		if alt := identity.KindsAllowing(e.Family, e.Kind); len(alt) > 0 {
			suggestions = append(suggestions, fmt.Sprintf("switch identity via users_switch_identity to one of %v, which can use %q", alt, e.Family))
		}
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:        zulipwire.CodeCapabilityDenied,
			Message:     e.Error(),
			Suggestions: suggestions,
		})

	case *zulipclient.AuthError:
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:    zulipwire.CodeAuthError,
			Message: e.Error(),
		})

	case *zulipclient.NotFoundError:
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:        zulipwire.CodeNotFoundError,
			Message:     e.Error(),
			Suggestions: []string{fmt.Sprintf("double-check the %s identifier, or use users_list/search_advanced to resolve it", e.Resource)},
		})

	case *zulipclient.RateLimitError:
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:              zulipwire.CodeRateLimitError,
			Message:           e.Error(),
			RetryAfterSeconds: e.RetryAfterSeconds,
		})

	case *zulipclient.TransientError:
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:    zulipwire.CodeTransientError,
			Message: e.Error(),
		})

	case *resolver.AmbiguousUserError:
		candidates := make([]zulipwire.UserCandidate, 0, len(e.Candidates))
		for _, c := range e.Candidates {
			candidates = append(candidates, zulipwire.UserCandidate{Email: c.Email, FullName: c.FullName})
		}
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:       zulipwire.CodeAmbiguousUserError,
			Message:    e.Error(),
			Candidates: candidates,
		})

	case *resolver.UserNotFoundError:
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:    zulipwire.CodeUserNotFoundError,
			Message: e.Error(),
			Recovery: &zulipwire.Recovery{
				Tool: "users_list",
				Hint: "list or search users to find the correct identifier",
			},
		})

	case *store.StoreWriteError:
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:    zulipwire.CodeStoreWriteError,
			Message: e.Error(),
		})

	default:
		return zulipwire.ErrorFrame(zulipwire.ErrorBody{
			Code:    zulipwire.CodeInternalError,
			Message: err.Error(),
		})
	}
}
