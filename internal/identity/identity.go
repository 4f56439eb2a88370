// Package identity holds the dual (or triple) Zulip credential bundles
// used to authenticate REST calls, and enforces which tool families each
// kind may invoke.
package identity

import (
	"fmt"
	"sort"
	"sync"
)

// Kind names a credential bundle.
type Kind string

const (
	KindUser  Kind = "USER"
	KindBot   Kind = "BOT"
	KindAdmin Kind = "ADMIN"
)

// Bundle is one set of Zulip credentials.
type Bundle struct {
	Kind    Kind
	Site    string
	Email   string
	APIKey  string
	BotName string // set only for KindBot
}

// CapabilityDenied is returned by CheckCapability when an identity kind
// is not permitted to invoke a tool family.
type CapabilityDenied struct {
	Kind   Kind
	Family string
}

func (e *CapabilityDenied) Error() string {
	return fmt.Sprintf("identity %s is not permitted to use tool family %q", e.Kind, e.Family)
}

// KindsAllowing returns every kind (other than excluding) whose default
// matrix permits family, for CapabilityDenied's "suggest an alternative
// identity" disposition (spec.md §7).
func KindsAllowing(family string, excluding Kind) []Kind {
	var out []Kind
	for kind, allowed := range defaultMatrix {
		if kind == excluding {
			continue
		}
		if allowed[family] {
			out = append(out, kind)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// defaultMatrix mirrors spec.md §4.2's illustrative capability matrix.
// Families are the same vocabulary used by internal/tools.
var defaultMatrix = map[Kind]map[string]bool{
	KindUser: {
		"read": true, "send": true, "edit_own": true, "search": true,
		"upload": true, "subscribe": true,
	},
	KindBot: {
		"send": true, "read": true, "react": true, "stream_events": true,
		"scheduled": true, "bulk_read": true,
	},
	KindAdmin: {
		"read": true, "send": true, "edit_own": true, "search": true,
		"upload": true, "subscribe": true, "react": true, "stream_events": true,
		"scheduled": true, "bulk_read": true,
		"user_management": true, "realm_settings": true, "export": true, "topic_delete": true,
	},
}

// defaultKindForFamily picks the identity kind a tool family runs under
// absent an explicit preference, used by Select.
var defaultKindForFamily = map[string]Kind{
	"send":            KindBot,
	"react":           KindBot,
	"stream_events":   KindBot,
	"scheduled":       KindBot,
	"bulk_read":       KindBot,
	"user_management": KindAdmin,
	"realm_settings":  KindAdmin,
	"export":          KindAdmin,
	"topic_delete":    KindAdmin,
}

// Registry holds up to three credential bundles and the capability
// matrix governing which kinds may use which tool families.
type Registry struct {
	mu      sync.RWMutex
	bundles map[Kind]*Bundle
	matrix  map[Kind]map[string]bool
	current Kind
}

// New builds a Registry from whichever bundles are available. At least
// one bundle must be non-nil.
func New(user, bot, admin *Bundle) *Registry {
	r := &Registry{
		bundles: make(map[Kind]*Bundle),
		matrix:  defaultMatrix,
	}
	if user != nil {
		r.bundles[KindUser] = user
		r.current = KindUser
	}
	if bot != nil {
		r.bundles[KindBot] = bot
		if r.current == "" {
			r.current = KindBot
		}
	}
	if admin != nil {
		r.bundles[KindAdmin] = admin
		if r.current == "" {
			r.current = KindAdmin
		}
	}
	return r
}

// Has reports whether a bundle of the given kind is registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bundles[kind]
	return ok
}

// Current returns the kind most recently activated by a successful
// Switch, for observability only — callers should not branch logic on
// it, per spec.md §4.2.
func (r *Registry) Current() Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// CheckCapability raises CapabilityDenied if kind may not use family.
func (r *Registry) CheckCapability(family string, kind Kind) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if allowed, ok := r.matrix[kind]; ok && allowed[family] {
		return nil
	}
	return &CapabilityDenied{Kind: kind, Family: family}
}

// Select returns the credential bundle a tool call should run under.
// Selection rule: explicit preferredKind if present and available; else
// the family's default kind; else fall back to USER.
func (r *Registry) Select(family string, preferredKind Kind) (*Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if preferredKind != "" {
		if b, ok := r.bundles[preferredKind]; ok {
			if err := r.checkLocked(family, preferredKind); err != nil {
				return nil, err
			}
			return b, nil
		}
	}

	if want, ok := defaultKindForFamily[family]; ok {
		if b, ok := r.bundles[want]; ok {
			if err := r.checkLocked(family, want); err == nil {
				return b, nil
			}
		}
	}

	if b, ok := r.bundles[KindUser]; ok {
		if err := r.checkLocked(family, KindUser); err != nil {
			return nil, err
		}
		return b, nil
	}

	return nil, fmt.Errorf("identity: no credential bundle available for family %q", family)
}

func (r *Registry) checkLocked(family string, kind Kind) error {
	if allowed, ok := r.matrix[kind]; ok && allowed[family] {
		return nil
	}
	return &CapabilityDenied{Kind: kind, Family: family}
}

// Validator round-trips a candidate bundle against the live Zulip API
// (e.g. GET /users/me) before Switch activates it.
type Validator interface {
	Validate(b *Bundle) error
}

// Switch performs an additive identity switch: the candidate bundle is
// validated before activation; a failed validation leaves the previous
// kind active.
func (r *Registry) Switch(kind Kind, v Validator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bundles[kind]
	if !ok {
		return fmt.Errorf("identity: no bundle registered for kind %s", kind)
	}
	if v != nil {
		if err := v.Validate(b); err != nil {
			return fmt.Errorf("identity: switch to %s failed validation: %w", kind, err)
		}
	}
	r.current = kind
	return nil
}
