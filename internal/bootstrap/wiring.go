// Package bootstrap is the C12 wiring graph: it turns resolved
// credentials and config into a live Store, Client, Registry, tool
// Handlers, and MCP Server, and owns the process's graceful shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zulipmcp/bridge/internal/afk"
	"github.com/zulipmcp/bridge/internal/chain"
	"github.com/zulipmcp/bridge/internal/config"
	"github.com/zulipmcp/bridge/internal/identity"
	"github.com/zulipmcp/bridge/internal/listener"
	"github.com/zulipmcp/bridge/internal/mcpserver"
	"github.com/zulipmcp/bridge/internal/metrics"
	"github.com/zulipmcp/bridge/internal/resolver"
	"github.com/zulipmcp/bridge/internal/scheduler"
	"github.com/zulipmcp/bridge/internal/store"
	"github.com/zulipmcp/bridge/internal/tools"
	"github.com/zulipmcp/bridge/internal/validate"
	"github.com/zulipmcp/bridge/internal/zulipclient"
)

// App holds every long-lived collaborator, wired once at startup.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Client   *zulipclient.Client
	Identity *identity.Registry
	Resolver *resolver.Resolver
	AFK      *afk.Controller
	Listener *listener.Listener
	Chain    *chain.Executor
	Sched    *scheduler.Scheduler
	Metrics  *metrics.Metrics
	MCP      *mcpserver.Server

	log *slog.Logger
}

// Build constructs the full wiring graph from cfg and creds. Version
// is stamped into the MCP server's implementation info.
func Build(cfg *config.Config, creds *config.Credentials, version string) (*App, error) {
	log := slog.Default()

	st, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open store: %w", err)
	}

	var userBundle, botBundle *identity.Bundle
	if creds.HasUser() {
		userBundle = &identity.Bundle{Kind: identity.KindUser, Site: creds.Site, Email: creds.UserEmail, APIKey: creds.UserAPIKey}
	}
	if creds.HasBot() {
		botBundle = &identity.Bundle{Kind: identity.KindBot, Site: creds.Site, Email: creds.BotEmail, APIKey: creds.BotAPIKey, BotName: creds.BotName}
	}
	if userBundle == nil && botBundle == nil {
		st.Close()
		return nil, fmt.Errorf("bootstrap: no complete credential bundle (need at least a user or bot identity)")
	}
	registry := identity.New(userBundle, botBundle, nil)

	clientCfg := zulipclient.Config{
		RequestTimeout:      cfg.RestClient.RequestTimeout,
		MaxRetries:          cfg.RestClient.MaxRetries,
		RateLimitPerMinute:  cfg.RestClient.RateLimitPerMin,
		MaxIdleConnsPerHost: cfg.RestClient.MaxIdleConnsPerHost,
		MaxConns:            cfg.RestClient.MaxConns,
	}
	site := creds.Site
	client := zulipclient.New(site, clientCfg, log)

	m, err := metrics.New()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("bootstrap: build metrics: %w", err)
	}

	afkBundle, err := registry.Select("read", "")
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("bootstrap: no readable identity for resolver/afk: %w", err)
	}
	userSource := &cachedUserSource{client: client, bundle: afkBundle}
	res := resolver.New(userSource)

	afkCtl := afk.New(st.AFK, log)

	agentPrefix := "agents"
	// Scope the registered event queue to the dedicated agent channel
	// per spec.md §4.6 step 3a, rather than receiving every message
	// event in the realm.
	correlationNarrow := zulipclient.Narrow{{Operator: "stream", Operand: agentPrefix}}
	var lst *listener.Listener
	if botBundle != nil {
		lst = listener.New(client, botBundle, st.Requests, afkCtl, correlationNarrow, cfg.Listener.CorrelationWindow, log)
	}

	sched := scheduler.New(client)

	handlers := &tools.Handlers{
		Client:             client,
		Identity:           registry,
		Store:              st,
		Resolver:           res,
		Scheduler:          sched,
		AFK:                afkCtl,
		Log:                log,
		AgentChannelPrefix: agentPrefix,
	}

	chainExec := chain.New(handlers, st.Chains, log)

	schemaDocs := map[string]string{
		"narrow_list": fmt.Sprintf(`{"type":"object","properties":{"narrow":%s}}`, validate.NarrowListSchema),
	}
	validator, err := validate.NewSchemaValidator(schemaDocs)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("bootstrap: compile schemas: %w", err)
	}

	disp := mcpserver.NewDispatcher(handlers, validator)
	srv := mcpserver.NewServer(disp, log, version)

	return &App{
		Config:   cfg,
		Store:    st,
		Client:   client,
		Identity: registry,
		Resolver: res,
		AFK:      afkCtl,
		Listener: lst,
		Chain:    chainExec,
		Sched:    sched,
		Metrics:  m,
		MCP:      srv,
		log:      log,
	}, nil
}

// Run starts every background loop and blocks serving MCP over stdio
// until ctx is cancelled, then drains the listener and closes the
// store within a 5s deadline.
func (a *App) Run(ctx context.Context) error {
	if a.Listener != nil {
		go a.Listener.RunController(ctx, a.Config.Listener.ControllerTick)
	}
	go a.AFK.RunAutoReturnLoop(ctx, a.Config.AFK.AutoReturnTick)
	go a.Metrics.RunSnapshotLoop(ctx, time.Minute, a.log)

	err := a.MCP.ListenStdio(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.shutdown(shutdownCtx)

	return err
}

func (a *App) shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		if closeErr := a.Store.Close(); closeErr != nil {
			a.log.Error("bootstrap: store close failed", "error", closeErr)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("bootstrap: shutdown deadline exceeded")
	}
}

// cachedUserSource adapts zulipclient's TTL-cached GetUsers into the
// resolver's UserSource interface.
type cachedUserSource struct {
	client *zulipclient.Client
	bundle *identity.Bundle
}

func (c *cachedUserSource) CachedUserList() ([]resolver.User, error) {
	raw, err := c.client.GetUsers(context.Background(), c.bundle)
	if err != nil {
		return nil, err
	}
	out := make([]resolver.User, 0, len(raw))
	for _, u := range raw {
		email, _ := u["email"].(string)
		name, _ := u["full_name"].(string)
		out = append(out, resolver.User{Email: email, FullName: name})
	}
	return out, nil
}
