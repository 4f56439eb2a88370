// Package tools implements the seven C5 tool families: messaging,
// streams & topics, events, users, search & analytics, files, and
// agents. Each handler is a pure transformation over the REST client
// (C3), the store (C1), or both — no MCP-protocol concerns live here
// (those belong to internal/mcpserver).
package tools

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/zulipmcp/bridge/internal/afk"
	"github.com/zulipmcp/bridge/internal/identity"
	"github.com/zulipmcp/bridge/internal/resolver"
	"github.com/zulipmcp/bridge/internal/scheduler"
	"github.com/zulipmcp/bridge/internal/store"
	"github.com/zulipmcp/bridge/internal/validate"
	"github.com/zulipmcp/bridge/internal/zulipclient"
	"github.com/zulipmcp/bridge/pkg/zulipwire"
)

// AFKOverrideEnv is the developer-mode override that lets
// agent_message post even while present, per spec.md §4.7.
const AFKOverrideEnv = "ZULIP_MCP_AFK_OVERRIDE"

// Handlers bundles every collaborator the seven tool families need.
type Handlers struct {
	Client    *zulipclient.Client
	Identity  *identity.Registry
	Store     *store.Store
	Resolver  *resolver.Resolver
	Scheduler *scheduler.Scheduler
	AFK       *afk.Controller
	Log       *slog.Logger

	AgentChannelPrefix string // stream that holds each agent's dedicated topic
}

func success(fields map[string]any) map[string]any {
	return zulipwire.Frame(zulipwire.StatusSuccess, fields)
}

func partialSuccess(note string, fields map[string]any) map[string]any {
	merged := map[string]any{"note": note}
	for k, v := range fields {
		merged[k] = v
	}
	return zulipwire.Frame(zulipwire.StatusPartialSuccess, merged)
}

func skipped(reason string) map[string]any {
	return zulipwire.Frame(zulipwire.StatusSkipped, map[string]any{"reason": reason})
}

func overrideActive() bool {
	v, ok := os.LookupEnv(AFKOverrideEnv)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// selectBundle resolves the identity bundle for family, honoring an
// optional explicit preference.
func (h *Handlers) selectBundle(family string, preferred identity.Kind) (*identity.Bundle, error) {
	return h.Identity.Select(family, preferred)
}

// newValidationError mirrors validate.Error's shape for tool-local
// validation failures that aren't routed through the Validator package
// directly (mutual-exclusion checks, etc).
func newValidationError(message string, suggestions ...string) *validate.Error {
	return &validate.Error{Code: zulipwire.CodeValidationError, Message: message, Suggestions: suggestions}
}
