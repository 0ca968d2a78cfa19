// Package tab composes the session core for one browser tab: credential store, auth state
// machine, organization directory, switch protocol and cross-tab mirror.
package tab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tenant-dashboard/internal/auth"
	"tenant-dashboard/internal/backend"
	"tenant-dashboard/internal/credential"
	"tenant-dashboard/internal/events"
	"tenant-dashboard/internal/localstore"
	"tenant-dashboard/internal/metrics"
	"tenant-dashboard/internal/orgcache"
	"tenant-dashboard/internal/orgs"
	"tenant-dashboard/internal/routeguard"
	"tenant-dashboard/internal/session"
	"tenant-dashboard/internal/tabsync"
	"tenant-dashboard/internal/tenancy"
)

// Backend is everything a tab asks of the authorization service.
type Backend interface {
	auth.Validator
	orgs.Source
	tenancy.Switcher
}

type Options struct {
	Strategy tenancy.Strategy
	// Cache defaults to a private cache per tab.
	Cache   *orgcache.Cache
	Guard   *routeguard.Guard
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

type Tab struct {
	ID string

	Store   credential.Store
	Bus     *events.Bus
	Auth    *auth.Machine
	Orgs    *orgs.Directory
	Tenancy *tenancy.Service
	Cache   *orgcache.Cache

	dual    *credential.DualStore
	local   localstore.Store
	cookies credential.CookieChannel
	guard   *routeguard.Guard
	sync    *tabsync.Synchronizer
	log     *slog.Logger

	mu      sync.Mutex
	reloads int
}

// New builds a tab over its two storage channels.
func New(id string, cookies credential.CookieChannel, local localstore.Store, be Backend, opts Options) *Tab {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("tab_id", id)
	cache := opts.Cache
	if cache == nil {
		cache = orgcache.New(256, 10*time.Minute, opts.Metrics)
	}

	t := &Tab{
		ID:      id,
		Bus:     events.NewBus(log),
		Cache:   cache,
		local:   local,
		cookies: cookies,
		guard:   opts.Guard,
		log:     log,
	}
	if t.guard == nil {
		t.guard = routeguard.New(routeguard.DefaultRules(), routeguard.DefaultPolicy())
	}
	t.dual = credential.NewDualStore(cookies, local)
	t.Store = t.dual
	t.Auth = auth.NewMachine(t.Store, be, t.Bus, opts.Metrics, log)
	t.Orgs = orgs.NewDirectory(be, opts.Metrics, log)
	t.Tenancy = tenancy.NewService(t.Store, be, t.Orgs, t.Bus, tenancy.Options{
		Strategy: opts.Strategy,
		Reloader: tenancy.ReloadFunc(t.Reload),
		Cache:    cache,
		Metrics:  opts.Metrics,
		Log:      log,
	})
	t.sync = tabsync.New(local, tabsync.Funcs{
		Organization: t.Tenancy.AdoptRemote,
		SignOut:      t.signedOutElsewhere,
	}, log)
	return t
}

// Mount resolves the credential and binds the identity to the switch protocol.
func (t *Tab) Mount(ctx context.Context) auth.Snapshot {
	return t.settle(t.Auth.Mount(ctx))
}

// Navigated re-validates after a client-side path change.
func (t *Tab) Navigated(ctx context.Context, path string) auth.Snapshot {
	return t.settle(t.Auth.PathChanged(ctx, path))
}

func (t *Tab) settle(snap auth.Snapshot) auth.Snapshot {
	switch snap.State {
	case auth.StateAuthenticated:
		t.Tenancy.Bind(snap.Identity)
	case auth.StateUnauthenticated:
		// An unreachable backend proves nothing; keep what the tab knows.
		if !errors.Is(snap.Err, session.ErrNetworkFailure) || backend.Responded(snap.Err) {
			t.forget()
		}
	}
	return snap
}

// Login signs in and loads the organization list.
func (t *Tab) Login(ctx context.Context, email, password string, persistent bool) error {
	if err := t.Auth.Login(ctx, email, password, persistent); err != nil {
		return err
	}
	t.settle(t.Auth.Snapshot())
	_, err := t.LoadOrganizations(ctx)
	if err != nil && !errors.Is(err, session.ErrNetworkFailure) {
		return err
	}
	return nil
}

// Logout clears the credential and everything derived from it.
func (t *Tab) Logout(ctx context.Context) error {
	err := t.Auth.Logout(ctx)
	t.forget()
	return err
}

// RememberedEmail returns the email a persistent login left behind for the login form.
func (t *Tab) RememberedEmail(ctx context.Context) (string, bool) {
	return t.dual.RememberedEmail(ctx)
}

func (t *Tab) signedOutElsewhere() {
	t.Auth.SignedOutElsewhere()
	t.forget()
}

func (t *Tab) forget() {
	t.Tenancy.Unbind()
	t.Orgs.Reset()
	t.Cache.Purge()
}

// LoadOrganizations refreshes the directory with the current credential. A network failure
// keeps the last-known list and raises a non-blocking notification.
func (t *Tab) LoadOrganizations(ctx context.Context) ([]session.Organization, error) {
	cred, ok, err := t.Store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, session.ErrAuthenticationRequired
	}
	list, err := t.Orgs.Refresh(ctx, cred.Token)
	if err != nil {
		if t.rejected(ctx, err) {
			return nil, err
		}
		if errors.Is(err, session.ErrNetworkFailure) {
			t.Bus.Notify(events.LevelWarn, "Could not refresh organizations")
		}
		return list, err
	}
	// Names become known only now; refresh the active organization's display.
	if active := t.Tenancy.Active(); active.ID != "" {
		if org, ok := t.Orgs.Lookup(active.ID); ok {
			t.Tenancy.SetActive(org)
		}
	}
	return list, nil
}

// Switch moves the tab to orgID. A tab that never loaded its directory loads it once first;
// after that an unknown organization is rejected without a network call.
func (t *Tab) Switch(ctx context.Context, orgID string) error {
	if !t.Orgs.Loaded() {
		if _, err := t.LoadOrganizations(ctx); err != nil {
			return fmt.Errorf("switch: %w", err)
		}
	}
	err := t.Tenancy.Switch(ctx, orgID)
	t.rejected(ctx, err)
	return err
}

// rejected signs the tab out when the backend refused its credential. It reports whether it
// did.
func (t *Tab) rejected(ctx context.Context, err error) bool {
	if err == nil || !backend.Responded(err) || !session.Terminates(err) {
		return false
	}
	t.log.Warn("tab: backend rejected credential", "err", err)
	_ = t.Logout(ctx)
	return true
}

// Reload simulates a full page reload: in-memory state is dropped and rebuilt from storage.
func (t *Tab) Reload(ctx context.Context) error {
	t.mu.Lock()
	t.reloads++
	t.mu.Unlock()

	t.Cache.Purge()
	t.Orgs.Reset()
	t.Tenancy.Unbind()
	snap := t.Mount(ctx)
	if snap.State != auth.StateAuthenticated {
		return nil
	}
	_, err := t.LoadOrganizations(ctx)
	return err
}

func (t *Tab) Reloads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reloads
}

// Run mirrors other tabs' credential changes until ctx ends.
func (t *Tab) Run(ctx context.Context) error { return t.sync.Run(ctx) }

// Start mirrors other tabs' credential changes in the background until ctx ends.
func (t *Tab) Start(ctx context.Context) error { return t.sync.Start(ctx) }

// HandleChange applies one cross-tab change synchronously.
func (t *Tab) HandleChange(c localstore.Change) { t.sync.HandleChange(c) }

// FetchFunc loads one org-scoped resource with the given credential.
type FetchFunc func(ctx context.Context, token, orgID string) (any, error)

// Fetch returns the resource kind/key of the active organization, from the cache when present.
// A response that arrives after the active organization changed is discarded with
// session.ErrStale.
func (t *Tab) Fetch(ctx context.Context, kind, key string, fetch FetchFunc) (any, error) {
	scope := t.Tenancy.Capture()
	k := orgcache.Key{OrganizationID: scope.OrganizationID(), Kind: kind, Key: key}
	if k.OrganizationID == "" {
		return nil, session.ErrAuthenticationRequired
	}
	if v, ok := t.Cache.Get(k); ok {
		return v, nil
	}

	cred, ok, err := t.Store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, session.ErrAuthenticationRequired
	}
	// The stored credential may already belong to another tab's newer organization.
	if cred.OrganizationID != k.OrganizationID {
		return nil, session.ErrStale
	}

	v, err := fetch(ctx, cred.Token, k.OrganizationID)
	if err != nil {
		t.rejected(ctx, err)
		return nil, err
	}
	if !t.Cache.PutScoped(scope, k, v) {
		return nil, session.ErrStale
	}
	return v, nil
}
