// Package orgs fetches the organizations of the current identity and its role in each.
package orgs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tenant-dashboard/internal/metrics"
	"tenant-dashboard/internal/session"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Source is the slice of the backend the directory reads.
type Source interface {
	ListOrganizations(ctx context.Context, token string) ([]session.Organization, error)
	OrganizationRole(ctx context.Context, token, orgID string) (string, error)
}

// Directory caches the last successfully fetched organization list for one identity.
type Directory struct {
	src     Source
	metrics *metrics.Metrics
	log     *slog.Logger

	// maxParallel bounds concurrent role requests.
	maxParallel int
	flight      singleflight.Group

	mu     sync.RWMutex
	gen    uint64
	orgs   []session.Organization
	loaded bool
}

func NewDirectory(src Source, m *metrics.Metrics, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{src: src, metrics: m, log: log, maxParallel: 8}
}

// Reset forgets the cached list; responses to requests issued before Reset are discarded.
// Call it whenever the identity changes.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.orgs = nil
	d.loaded = false
}

// Refresh fetches the list and every role in parallel, then replaces the cache.
//
// On failure the last-known list stays in place and the error wraps session.ErrNetworkFailure
// when the backend was unreachable. A response that raced a Reset returns session.ErrStale.
// Concurrent refreshes for the same token share one round of requests.
func (d *Directory) Refresh(ctx context.Context, token string) ([]session.Organization, error) {
	v, err, _ := d.flight.Do(token, func() (any, error) {
		return d.refresh(ctx, token)
	})
	list, _ := v.([]session.Organization)
	return clone(list), err
}

func (d *Directory) refresh(ctx context.Context, token string) ([]session.Organization, error) {
	d.mu.RLock()
	gen := d.gen
	d.mu.RUnlock()

	list, err := d.src.ListOrganizations(ctx, token)
	if err != nil {
		return d.Cached(), fmt.Errorf("list organizations: %w", err)
	}

	out := make([]session.Organization, len(list))
	copy(out, list)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxParallel)
	for i := range out {
		i := i
		g.Go(func() error {
			role, err := d.src.OrganizationRole(gctx, token, out[i].ID)
			if err != nil {
				return fmt.Errorf("role for %s: %w", out[i].ID, err)
			}
			out[i].Role = role
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return d.Cached(), err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		d.metrics.Stale("directory")
		d.log.Debug("orgs: discarded stale organization list")
		return nil, session.ErrStale
	}
	d.orgs = out
	d.loaded = true
	return clone(out), nil
}

// Cached returns the last-known list.
func (d *Directory) Cached() []session.Organization {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return clone(d.orgs)
}

// Loaded reports whether a list has been fetched since the last Reset.
func (d *Directory) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Lookup finds id in the cached list without any network call.
func (d *Directory) Lookup(id string) (session.Organization, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, o := range d.orgs {
		if o.ID == id {
			return o, true
		}
	}
	return session.Organization{}, false
}

func clone(in []session.Organization) []session.Organization {
	if in == nil {
		return nil
	}
	out := make([]session.Organization, len(in))
	copy(out, in)
	return out
}
