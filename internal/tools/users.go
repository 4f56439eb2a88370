package tools

import (
	"context"
	"fmt"

	"github.com/zulipmcp/bridge/internal/identity"
	"github.com/zulipmcp/bridge/internal/zulipclient"
)

// ListUsers implements users/list.
func (h *Handlers) ListUsers(ctx context.Context, params map[string]any) (map[string]any, error) {
	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	users, err := h.Client.GetUsers(ctx, bundle)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"users": users}), nil
}

// GetUser implements users/get, resolving the identifier (email, full
// name, or fuzzy match) via the User Resolver.
func (h *Handlers) GetUser(ctx context.Context, params map[string]any) (map[string]any, error) {
	identifier, _ := params["identifier"].(string)
	if identifier == "" {
		return nil, newValidationError("parameter \"identifier\" is required")
	}
	if h.Resolver == nil {
		return nil, fmt.Errorf("tools: user resolver not configured")
	}
	u, err := h.Resolver.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"user": u}), nil
}

// GetOwnUser implements users/own.
func (h *Handlers) GetOwnUser(ctx context.Context, params map[string]any) (map[string]any, error) {
	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	user, err := h.Client.GetOwnUser(ctx, bundle)
	if err != nil {
		return nil, err
	}
	return success(map[string]any{"user": user}), nil
}

// UpdatePresence implements users/presence.
func (h *Handlers) UpdatePresence(ctx context.Context, params map[string]any) (map[string]any, error) {
	status, _ := params["status"].(string)
	if status == "" {
		status = "active"
	}
	bundle, err := h.selectBundle("read", "")
	if err != nil {
		return nil, err
	}
	if err := h.Client.UpdatePresence(ctx, bundle, status); err != nil {
		return nil, err
	}
	return success(nil), nil
}

// SwitchIdentity implements users/switch_identity: an additive switch
// validated before activation, per spec.md §4.2.
func (h *Handlers) SwitchIdentity(ctx context.Context, params map[string]any) (map[string]any, error) {
	kindStr, _ := params["kind"].(string)
	kind := identity.Kind(kindStr)
	if kind != identity.KindUser && kind != identity.KindBot && kind != identity.KindAdmin {
		return nil, newValidationError(fmt.Sprintf("unknown identity kind %q", kindStr))
	}
	validator := &liveValidator{client: h.Client, ctx: ctx}
	if err := h.Identity.Switch(kind, validator); err != nil {
		return nil, err
	}
	return success(map[string]any{"current": string(kind)}), nil
}

// liveValidator round-trips GET /users/me to confirm a bundle is live
// before Switch activates it.
type liveValidator struct {
	client *zulipclient.Client
	ctx    context.Context
}

func (v *liveValidator) Validate(b *identity.Bundle) error {
	_, err := v.client.GetOwnUser(v.ctx, b)
	return err
}

// ManageGroups implements users/manage_groups: list/member queries for
// every identity kind; create/update/delete require a registered ADMIN
// identity (CapabilityDenied otherwise) and then return partial_success,
// since the REST client has no group-mutation endpoints.
func (h *Handlers) ManageGroups(ctx context.Context, params map[string]any) (map[string]any, error) {
	action, _ := params["action"].(string)
	switch action {
	case "list", "members":
		bundle, err := h.selectBundle("read", "")
		if err != nil {
			return nil, err
		}
		users, err := h.Client.GetUsers(ctx, bundle)
		if err != nil {
			return nil, err
		}
		return success(map[string]any{"note": "group membership derived from realm user list; no dedicated group endpoint wired", "users": users}), nil

	case "create", "update", "delete":
		if !h.Identity.Has(identity.KindAdmin) {
			return nil, &identity.CapabilityDenied{Kind: h.Identity.Current(), Family: "user_management"}
		}
		return partialSuccess(fmt.Sprintf("group action %q requires a realm group endpoint not wired in this client", action), nil), nil

	default:
		return nil, newValidationError(fmt.Sprintf("unknown manage_groups action %q", action))
	}
}
