// Package tenancy owns the active organization of a tab and the protocol for switching it.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tenant-dashboard/internal/backend"
	"tenant-dashboard/internal/credential"
	"tenant-dashboard/internal/events"
	"tenant-dashboard/internal/metrics"
	"tenant-dashboard/internal/orgcache"
	"tenant-dashboard/internal/session"
)

// Strategy picks how the initiating tab drops org-scoped state after a committed switch.
type Strategy string

const (
	// StrategyReload reloads the whole tab.
	StrategyReload Strategy = "reload"
	// StrategyRekey only invalidates cache entries of the previous organization.
	StrategyRekey Strategy = "rekey"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyReload:
		return StrategyReload, nil
	case StrategyRekey:
		return StrategyRekey, nil
	default:
		return "", fmt.Errorf("unknown switch strategy %q", s)
	}
}

type SwitchState int

const (
	Idle SwitchState = iota
	Switching
	Committed
	RolledBack
)

func (s SwitchState) String() string {
	switch s {
	case Switching:
		return "switching"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Switcher asks the backend for a credential scoped to another organization.
type Switcher interface {
	SwitchOrganization(ctx context.Context, token, orgID string) (backend.Grant, error)
}

// Directory is the cached organization list a switch target must come from.
type Directory interface {
	Lookup(id string) (session.Organization, bool)
}

// Reloader performs a full reload of the tab.
type Reloader interface {
	Reload(ctx context.Context) error
}

type ReloadFunc func(ctx context.Context) error

func (f ReloadFunc) Reload(ctx context.Context) error { return f(ctx) }

type Options struct {
	Strategy Strategy
	Reloader Reloader
	Cache    *orgcache.Cache
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

// Service is the single authority on which organization a tab is working in.
type Service struct {
	store    credential.Store
	backend  Switcher
	dir      Directory
	bus      *events.Bus
	strategy Strategy
	reloader Reloader
	cache    *orgcache.Cache
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu     sync.Mutex
	active session.Organization
	target session.Organization
	state  SwitchState
	email  string
	// epoch changes whenever the active organization does; scopes compare against it.
	epoch uint64
}

func NewService(store credential.Store, sw Switcher, dir Directory, bus *events.Bus, opts Options) *Service {
	if opts.Strategy == "" {
		opts.Strategy = StrategyReload
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Service{
		store:    store,
		backend:  sw,
		dir:      dir,
		bus:      bus,
		strategy: opts.Strategy,
		reloader: opts.Reloader,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		log:      opts.Log,
	}
}

// Bind records the identity the tab is signed in as and makes the organization its credential
// is scoped to the active one.
func (s *Service) Bind(id session.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = id.Email
	if id.OrganizationID != "" && s.state != Switching {
		s.setActiveLocked(s.resolve(id.OrganizationID))
	}
}

// Unbind forgets the identity and active organization, typically after logout.
func (s *Service) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = ""
	s.setActiveLocked(session.Organization{})
	s.state = Idle
	s.target = session.Organization{}
}

func (s *Service) Active() session.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Displayed is what the organization selector should show: the target while a switch is in
// flight, otherwise the active organization.
func (s *Service) Displayed() session.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Switching {
		return s.target
	}
	return s.active
}

func (s *Service) Status() SwitchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetActive sets the in-memory active organization without touching the credential.
func (s *Service) SetActive(org session.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActiveLocked(org)
}

// AdoptRemote mirrors an organization change made by another tab: in-memory only,
// no reload and no refetch.
func (s *Service) AdoptRemote(orgID string) {
	s.mu.Lock()
	if orgID == s.active.ID || s.state == Switching {
		s.mu.Unlock()
		return
	}
	org := s.resolve(orgID)
	s.setActiveLocked(org)
	s.mu.Unlock()

	s.log.Info("tenancy: adopted organization from another tab", "organization_id", orgID)
	s.bus.OrganizationChanged.Publish(events.OrganizationChanged{ID: org.ID, Name: org.Name, Remote: true})
}

// Switch moves the tab to orgID by minting a new credential for it.
//
// Unknown organizations are rejected without a network call, and switching to the active
// organization does nothing. When the backend or the credential store fails the previous
// organization and credential stay active.
func (s *Service) Switch(ctx context.Context, orgID string) error {
	s.mu.Lock()
	if s.state == Switching {
		s.mu.Unlock()
		return session.ErrSwitchInProgress
	}
	if orgID == s.active.ID {
		s.mu.Unlock()
		return nil
	}
	target, ok := s.dir.Lookup(orgID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("switch to %s: %w", orgID, session.ErrOrganizationNotFound)
	}
	s.state = Switching
	s.target = target
	email := s.email
	s.mu.Unlock()

	if err := s.mint(ctx, orgID, email); err != nil {
		s.rollback(orgID, err)
		return fmt.Errorf("switch to %s: %w", orgID, err)
	}

	s.mu.Lock()
	prev := s.active
	s.setActiveLocked(target)
	s.state = Committed
	s.mu.Unlock()

	s.metrics.Switch(Committed.String())
	s.log.Info("tenancy: switched organization", "from", prev.ID, "to", target.ID)
	s.bus.OrganizationChanged.Publish(events.OrganizationChanged{ID: target.ID, Name: target.Name})

	if s.cache != nil && prev.ID != "" {
		s.cache.InvalidateOrganization(prev.ID)
	}
	if s.strategy == StrategyReload && s.reloader != nil {
		if err := s.reloader.Reload(ctx); err != nil {
			s.log.Warn("tenancy: reload after switch", "err", err)
		}
	}
	return nil
}

// mint exchanges the current credential for one scoped to orgID and persists it.
func (s *Service) mint(ctx context.Context, orgID, email string) error {
	cur, ok, err := s.store.Read(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrAuthenticationRequired
	}

	grant, err := s.backend.SwitchOrganization(ctx, cur.Token, orgID)
	if err != nil {
		return err
	}
	if email == "" {
		email = cur.OwnerEmail
	}
	next := session.Credential{
		Token:          grant.Token,
		OrganizationID: grant.OrganizationID,
		OwnerEmail:     email,
		Persistent:     cur.Persistent,
	}
	if next.OrganizationID == "" {
		next.OrganizationID = orgID
	}
	return s.store.Save(ctx, next)
}

func (s *Service) rollback(orgID string, cause error) {
	s.mu.Lock()
	s.state = RolledBack
	s.target = session.Organization{}
	s.mu.Unlock()

	s.metrics.Switch(RolledBack.String())
	s.log.Warn("tenancy: switch rolled back", "organization_id", orgID, "err", cause)
	msg := "Could not switch organization"
	if errors.Is(cause, session.ErrPersistenceFailure) {
		msg = "Could not save the new organization session"
	}
	s.bus.Notify(events.LevelError, msg)
}

// resolve fills in the name from the directory when it is known.
func (s *Service) resolve(orgID string) session.Organization {
	if s.dir != nil {
		if org, ok := s.dir.Lookup(orgID); ok {
			return org
		}
	}
	return session.Organization{ID: orgID}
}

func (s *Service) setActiveLocked(org session.Organization) {
	if org.ID != s.active.ID {
		s.epoch++
	}
	s.active = org
}
