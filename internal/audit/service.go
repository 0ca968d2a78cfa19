package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records session transitions.
//
// Audit is internal-only. Callers treat recording as best-effort: the Record helpers log
// failures instead of returning them.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ActorUserID == "" && e.ActorEmail == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and logs instead of failing.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		s.log.Warn("audit: append failed", "type", e.Type, "err", err)
	}
}

func (s *Service) LogLogin(ctx context.Context, userID, email, orgID, ip, tabID string) {
	s.Record(ctx, Event{
		Type:           EventTypeLogin,
		OrganizationID: orgID,
		ActorUserID:    userID,
		ActorEmail:     email,
		IPAddress:      ip,
		TabID:          tabID,
	})
}

func (s *Service) LogLoginFailed(ctx context.Context, email, ip, reason string) {
	s.Record(ctx, Event{
		Type:       EventTypeLoginFailed,
		ActorEmail: email,
		IPAddress:  ip,
		Message:    reason,
	})
}

func (s *Service) LogLogout(ctx context.Context, userID, orgID, ip, tabID string) {
	s.Record(ctx, Event{
		Type:           EventTypeLogout,
		OrganizationID: orgID,
		ActorUserID:    userID,
		IPAddress:      ip,
		TabID:          tabID,
	})
}

func (s *Service) LogSwitch(ctx context.Context, userID, fromOrg, toOrg, ip, tabID string) {
	s.Record(ctx, Event{
		Type:               EventTypeOrganizationSwitch,
		OrganizationID:     toOrg,
		FromOrganizationID: fromOrg,
		ActorUserID:        userID,
		IPAddress:          ip,
		TabID:              tabID,
	})
}

func (s *Service) LogSwitchFailed(ctx context.Context, userID, fromOrg, toOrg, ip, reason string) {
	s.Record(ctx, Event{
		Type:               EventTypeSwitchFailed,
		OrganizationID:     toOrg,
		FromOrganizationID: fromOrg,
		ActorUserID:        userID,
		IPAddress:          ip,
		Message:            reason,
	})
}

// LogCredentialRejected records a stored credential the backend refused. Only credentials
// that remember their owner can be attributed.
func (s *Service) LogCredentialRejected(ctx context.Context, email, orgID, ip, tabID string) {
	if email == "" {
		return
	}
	s.Record(ctx, Event{
		Type:           EventTypeCredentialRejected,
		OrganizationID: orgID,
		ActorEmail:     email,
		IPAddress:      ip,
		TabID:          tabID,
		Message:        "credential rejected by backend",
	})
}
