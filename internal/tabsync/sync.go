// Package tabsync mirrors credential changes written by other tabs of the same origin.
package tabsync

import (
	"context"
	"log/slog"

	"tenant-dashboard/internal/credential"
	"tenant-dashboard/internal/localstore"
)

// Mirror receives the changes another tab made. Implementations update in-memory state only:
// no reload, no refetch.
type Mirror interface {
	AdoptOrganization(orgID string)
	SignedOut()
}

type Synchronizer struct {
	local  localstore.Store
	mirror Mirror
	log    *slog.Logger
}

func New(local localstore.Store, mirror Mirror, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{local: local, mirror: mirror, log: log}
}

// Run consumes change notifications until ctx ends or the feed closes.
func (s *Synchronizer) Run(ctx context.Context) error {
	changes, err := s.local.Watch(ctx)
	if err != nil {
		return err
	}
	return s.consume(ctx, changes)
}

// Start subscribes before returning and consumes in the background, so no change written
// after Start returns is missed.
func (s *Synchronizer) Start(ctx context.Context) error {
	changes, err := s.local.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		if err := s.consume(ctx, changes); err != nil && ctx.Err() == nil {
			s.log.Warn("tabsync: stopped", "err", err)
		}
	}()
	return nil
}

func (s *Synchronizer) consume(ctx context.Context, changes <-chan localstore.Change) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			s.HandleChange(c)
		}
	}
}

// HandleChange applies one change. Keys other than the organization and token keys are ignored.
func (s *Synchronizer) HandleChange(c localstore.Change) {
	switch c.Key {
	case credential.KeyOrganizationID:
		if c.Deleted() {
			return
		}
		s.log.Debug("tabsync: organization changed elsewhere", "organization_id", c.Value, "source", c.Source)
		s.mirror.AdoptOrganization(c.Value)
	case credential.KeyToken:
		if !c.Deleted() {
			return
		}
		s.log.Debug("tabsync: signed out elsewhere", "source", c.Source)
		s.mirror.SignedOut()
	}
}

// Funcs adapts two functions to Mirror.
type Funcs struct {
	Organization func(orgID string)
	SignOut      func()
}

func (f Funcs) AdoptOrganization(orgID string) {
	if f.Organization != nil {
		f.Organization(orgID)
	}
}

func (f Funcs) SignedOut() {
	if f.SignOut != nil {
		f.SignOut()
	}
}
