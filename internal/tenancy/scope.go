package tenancy

import "tenant-dashboard/internal/session"

// Scope remembers which organization was active when an org-scoped request started.
// A response is applied only if that organization is still active.
type Scope struct {
	svc   *Service
	org   string
	epoch uint64
}

// Capture records the current active organization.
func (s *Service) Capture() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Scope{svc: s, org: s.active.ID, epoch: s.epoch}
}

func (sc Scope) OrganizationID() string { return sc.org }

// Current reports whether the captured organization is still active.
func (sc Scope) Current() bool {
	if sc.svc == nil {
		return false
	}
	sc.svc.mu.Lock()
	defer sc.svc.mu.Unlock()
	return sc.svc.epoch == sc.epoch && sc.svc.active.ID == sc.org
}

// Apply runs fn only while scope is current. Otherwise it returns session.ErrStale and fn
// never runs.
func (s *Service) Apply(sc Scope, fn func()) error {
	if !sc.Current() {
		s.metrics.Stale("tenancy")
		return session.ErrStale
	}
	fn()
	return nil
}
