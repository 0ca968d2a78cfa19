package auth

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
	"tenant-dashboard/internal/session"
)

type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is the machine's state at one instant.
// Identity and Credential are set only when State is StateAuthenticated.
type Snapshot struct {
	State      State
	Identity   session.Identity
	Credential session.Credential

	// Err explains the last transition to StateUnauthenticated, if any.
	Err error
}

// Validator is the slice of the backend the machine calls.
type Validator interface {
	WhoAmI(ctx context.Context, token string) (session.Identity, error)
	Login(ctx context.Context, email, password string) (backend.Grant, error)
}

// Machine resolves whether the stored credential yields a valid identity.
//
// StateInitializing is the only starting state. Mount, PathChanged, Login and Logout re-enter it.
// Every entry bumps a generation; a resolution that finishes after a newer entry is dropped.
type Machine struct {
	store   credential.Store
	backend Validator
	bus     *events.Bus
	metrics *metrics.Metrics
	log     *slog.Logger

	// storeMu serializes credential writes so a stale resolution never clears a newer credential.
	storeMu sync.Mutex

	mu          sync.Mutex
	snap        Snapshot
	gen         uint64
	settled     chan struct{}
	lastSettled State
}

func NewMachine(store credential.Store, v Validator, bus *events.Bus, m *metrics.Metrics, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	if bus == nil {
		bus = events.NewBus(log)
	}
	return &Machine{
		store:       store,
		backend:     v,
		bus:         bus,
		metrics:     m,
		log:         log,
		snap:        Snapshot{State: StateInitializing},
		settled:     make(chan struct{}),
		lastSettled: StateInitializing,
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Mount resolves the credential when the application starts.
func (m *Machine) Mount(ctx context.Context) Snapshot { return m.Resolve(ctx) }

// PathChanged re-validates on every navigation so a credential invalidated mid-session is caught.
func (m *Machine) PathChanged(ctx context.Context, path string) Snapshot {
	m.log.Debug("auth: path changed", "path", path)
	return m.Resolve(ctx)
}

// Resolve enters StateInitializing and validates the stored credential against the backend.
func (m *Machine) Resolve(ctx context.Context) Snapshot {
	gen := m.begin()
	return m.validate(ctx, gen)
}

func (m *Machine) validate(ctx context.Context, gen uint64) Snapshot {
	cred, ok, err := m.store.Read(ctx)
	if err != nil {
		return m.settle(gen, Snapshot{State: StateUnauthenticated, Err: err})
	}
	if !ok {
		return m.settle(gen, Snapshot{State: StateUnauthenticated, Err: session.ErrAuthenticationRequired})
	}

	id, err := m.backend.WhoAmI(ctx, cred.Token)
	if err != nil {
		if !backend.Responded(err) {
			// The backend never answered: nothing proves the credential bad, so keep it.
			m.log.Warn("auth: identity check failed", "err", err)
			return m.settle(gen, Snapshot{State: StateUnauthenticated, Err: err})
		}
		m.storeMu.Lock()
		if m.current(gen) {
			if cerr := m.store.Clear(ctx); cerr != nil {
				m.log.Error("auth: clear rejected credential", "err", cerr)
			}
		}
		m.storeMu.Unlock()
		return m.settle(gen, Snapshot{
			State: StateUnauthenticated,
			Err:   fmt.Errorf("%w: %w", session.ErrSessionInvalid, err),
		})
	}

	if id.OrganizationID == "" {
		id.OrganizationID = cred.OrganizationID
	}
	cred.OrganizationID = id.OrganizationID
	if cred.OwnerEmail == "" {
		cred.OwnerEmail = id.Email
	}
	return m.settle(gen, Snapshot{State: StateAuthenticated, Identity: id, Credential: cred})
}

// Login exchanges email/password for a credential, persists it and resolves it.
// Nothing is persisted when the backend rejects the login.
func (m *Machine) Login(ctx context.Context, email, password string, persistent bool) error {
	grant, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	m.storeMu.Lock()
	gen := m.begin()
	err = m.store.Save(ctx, session.Credential{
		Token:          grant.Token,
		OrganizationID: grant.OrganizationID,
		OwnerEmail:     email,
		Persistent:     persistent,
	})
	m.storeMu.Unlock()
	if err != nil {
		m.settle(gen, Snapshot{State: StateUnauthenticated, Err: err})
		return fmt.Errorf("login: %w", err)
	}

	snap := m.validate(ctx, gen)
	if snap.State != StateAuthenticated {
		if snap.Err != nil {
			return fmt.Errorf("login: %w", snap.Err)
		}
		return fmt.Errorf("login: %w", session.ErrSessionInvalid)
	}
	return nil
}

// Logout clears the credential unconditionally. Calling it repeatedly is safe.
func (m *Machine) Logout(ctx context.Context) error {
	m.storeMu.Lock()
	gen := m.begin()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("auth: clear on logout", "err", err)
	}
	m.storeMu.Unlock()
	m.settle(gen, Snapshot{State: StateUnauthenticated})
	return nil
}

// SignedOutElsewhere marks the tab unauthenticated after another tab removed the credential.
// The store is already empty, so nothing is cleared here.
func (m *Machine) SignedOutElsewhere() {
	gen := m.begin()
	m.settle(gen, Snapshot{State: StateUnauthenticated, Err: session.ErrAuthenticationRequired})
}

// Wait blocks until the machine leaves StateInitializing or ctx is done.
func (m *Machine) Wait(ctx context.Context) (Snapshot, error) {
	for {
		m.mu.Lock()
		if m.snap.State != StateInitializing {
			s := m.snap
			m.mu.Unlock()
			return s, nil
		}
		ch := m.settled
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		}
	}
}

func (m *Machine) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.snap.State != StateInitializing {
		m.settled = make(chan struct{})
	}
	m.snap = Snapshot{State: StateInitializing}
	return m.gen
}

func (m *Machine) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Machine) settle(gen uint64, next Snapshot) Snapshot {
	m.mu.Lock()
	if gen != m.gen {
		s := m.snap
		m.mu.Unlock()
		m.metrics.Stale("auth")
		return s
	}
	ended := next.State == StateUnauthenticated && m.lastSettled == StateAuthenticated
	m.snap = next
	m.lastSettled = next.State
	close(m.settled)
	m.mu.Unlock()

	m.metrics.AuthTransition(next.State.String())
	attrs := []any{"state", next.State.String()}
	if next.State == StateAuthenticated {
		attrs = append(attrs, "user_id", next.Identity.UserID, "organization_id", next.Identity.OrganizationID)
	}
	if next.Err != nil && !errors.Is(next.Err, session.ErrAuthenticationRequired) {
		attrs = append(attrs, "err", next.Err)
	}
	m.log.Info("auth: state settled", attrs...)

	if ended {
		reason := "logout"
		if next.Err != nil {
			reason = next.Err.Error()
		}
		m.bus.SessionEnded.Publish(events.SessionEnded{Reason: reason})
	}
	return next
}
