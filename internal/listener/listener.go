// Package listener implements the background Event Listener (C6): an
// AFK-driven worker that registers a Zulip event queue under the bot
// identity, long-polls it, and correlates inbound replies to pending
// requests in the store.
package listener

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/zulipmcp/bridge/internal/identity"
	"github.com/zulipmcp/bridge/internal/store"
	"github.com/zulipmcp/bridge/internal/zulipclient"
)

// State is one of the listener's lifecycle states.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateDraining State = "draining"
)

// AFKSource reports whether the bot should currently be listening.
type AFKSource interface {
	IsAFK(ctx context.Context) (bool, error)
}

// Listener is the C6 background worker.
type Listener struct {
	client     *zulipclient.Client
	bot        *identity.Bundle
	requests   *store.RequestStore
	afk        AFKSource
	log        *slog.Logger
	agentChannelNarrow zulipclient.Narrow
	correlationWindow  time.Duration

	state     State
	stateMu   chan struct{} // binary semaphore guarding state
	cancelRun context.CancelFunc
}

// New builds a Listener. agentChannelNarrow scopes the registered
// queue to the dedicated agent channel, per spec.md §4.6 step 3a.
func New(client *zulipclient.Client, bot *identity.Bundle, requests *store.RequestStore, afk AFKSource, narrow zulipclient.Narrow, correlationWindow time.Duration, log *slog.Logger) *Listener {
	return &Listener{
		client:             client,
		bot:                bot,
		requests:           requests,
		afk:                afk,
		log:                log,
		agentChannelNarrow: narrow,
		correlationWindow:  correlationWindow,
		state:              StateStopped,
		stateMu:            make(chan struct{}, 1),
	}
}

func (l *Listener) lock()   { l.stateMu <- struct{}{} }
func (l *Listener) unlock() { <-l.stateMu }

// State returns the listener's current lifecycle state.
func (l *Listener) State() State {
	l.lock()
	defer l.unlock()
	return l.state
}

// RunController ticks every interval (default 5s), starting the worker
// when AFK and stopping it when not, per spec.md §4.6 step 2. Blocks
// until ctx is cancelled.
func (l *Listener) RunController(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.stopWorker()
			return
		case <-ticker.C:
			afk, err := l.afk.IsAFK(ctx)
			if err != nil {
				l.log.Error("listener: controller could not read AFK state", "error", err)
				continue
			}
			switch {
			case afk && l.State() == StateStopped:
				l.startWorker(ctx)
			case !afk && l.State() == StateRunning:
				l.stopWorker()
			}
		}
	}
}

func (l *Listener) startWorker(parent context.Context) {
	l.lock()
	l.state = StateStarting
	l.unlock()

	workerCtx, cancel := context.WithCancel(parent)
	l.cancelRun = cancel

	l.lock()
	l.state = StateRunning
	l.unlock()

	go l.runLoop(workerCtx)
}

func (l *Listener) stopWorker() {
	l.lock()
	if l.state != StateRunning {
		l.unlock()
		return
	}
	l.state = StateDraining
	cancel := l.cancelRun
	l.unlock()

	if cancel != nil {
		cancel()
	}

	l.lock()
	l.state = StateStopped
	l.unlock()
}

func (l *Listener) runLoop(ctx context.Context) {
	queueID, lastEventID, err := l.client.RegisterQueue(ctx, l.bot, []string{"message"}, l.agentChannelNarrow, 300)
	if err != nil {
		l.log.Error("listener: initial queue registration failed", "error", err)
		return
	}
	l.log.Info("listener: queue registered", "queue_id", queueID)

	reregisteredOnce := false
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			if derr := l.client.DeregisterQueue(context.Background(), l.bot, queueID); derr != nil {
				l.log.Warn("listener: deregister on shutdown failed", "error", derr)
			}
			return
		default:
		}

		events, newLastEventID, err := l.client.GetEvents(ctx, l.bot, queueID, lastEventID)
		if err != nil {
			if _, ok := err.(*zulipclient.QueueExpiredError); ok {
				if !reregisteredOnce {
					l.log.Info("listener: queue expired, re-registering once", "queue_id", queueID)
					newQueueID, newID, rerr := l.client.RegisterQueue(ctx, l.bot, []string{"message"}, l.agentChannelNarrow, 300)
					if rerr == nil {
						queueID, lastEventID = newQueueID, newID
						reregisteredOnce = true
						continue
					}
					l.log.Error("listener: re-registration failed", "error", rerr)
				}
				l.log.Warn("listener: repeated queue expiry, backing off linearly", "backoff", backoff)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				backoff += time.Second
				continue
			}
			l.log.Error("listener: get_events failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		reregisteredOnce = false
		backoff = time.Second
		lastEventID = newLastEventID

		for _, ev := range events {
			l.correlate(ctx, ev)
		}
	}
}

// correlate matches one inbound message event to a pending request row,
// per spec.md §4.6 step 4: explicit request id in body (preferred),
// else recency fallback scoped to the agent whose dedicated topic the
// reply arrived on. No match is dropped silently.
func (l *Listener) correlate(ctx context.Context, ev zulipclient.MessageEvent) {
	if requestID := extractRequestID(ev.Content); requestID != "" {
		if err := l.requests.Transition(ctx, requestID, store.RequestAnswered, ev.Content); err != nil {
			l.log.Error("listener: correlation transition failed", "request_id", requestID, "matched_by", "explicit_id", "error", err)
		}
		return
	}

	agentID, ok := agentIDFromTopic(ev.Subject)
	if !ok {
		return
	}

	pending, err := l.requests.FindPendingForSender(ctx, agentID, l.correlationWindow)
	if err != nil {
		l.log.Error("listener: recency fallback lookup failed", "agent_id", agentID, "error", err)
		return
	}
	if pending == nil {
		return
	}
	l.log.Info("listener: ambiguous fallback correlation", "request_id", pending.RequestID, "agent_id", agentID)
	if err := l.requests.Transition(ctx, pending.RequestID, store.RequestAnswered, ev.Content); err != nil {
		l.log.Error("listener: fallback correlation transition failed", "request_id", pending.RequestID, "error", err)
	}
}

// agentIDFromTopic extracts the agent id from the dedicated-topic
// scheme internal/tools/agents.go's agentChannelTopic produces
// ("agent/<agentID>"), for the recency-fallback correlation tier.
func agentIDFromTopic(topic string) (string, bool) {
	const prefix = "agent/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	agentID := topic[len(prefix):]
	if agentID == "" {
		return "", false
	}
	return agentID, true
}

// extractRequestID finds a leading short-form request id (8 hex chars,
// as produced by RequestStore.Create and shown in request_user_input's
// prompt) at the start of a reply's text.
func extractRequestID(text string) string {
	text = trimLeadingSpace(text)
	if len(text) < 8 {
		return ""
	}
	candidate := text[:8]
	for _, r := range candidate {
		if !isHex(r) {
			return ""
		}
	}
	// must be followed by a word boundary (space or end)
	if len(text) > 8 && text[8] != ' ' {
		return ""
	}
	return candidate
}

func trimLeadingSpace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n') {
		i++
	}
	return s[i:]
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
