package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"authgrid/api/internal/authz"
	"authgrid/api/internal/ids"
	"authgrid/api/internal/models"
)

// AuditService appends immutable security events. When mandatory, a failed
// write fails the operation that triggered it; otherwise it is logged and
// swallowed so audit outages cannot take authentication down with them.
type AuditService struct {
	store     AuditStore
	mandatory bool
	log       zerolog.Logger
}

func NewAuditService(store AuditStore, mandatory bool, log zerolog.Logger) *AuditService {
	return &AuditService{store: store, mandatory: mandatory, log: log}
}

// Record appends one entry. actor is nil for system actions; oldValues and
// newValues are JSON-marshaled snapshots when non-nil.
func (s *AuditService) Record(ctx context.Context, action, resource, resourceID string, actor *models.User, oldValues, newValues any, meta RequestMeta) error {
	entry := models.AuditLogEntry{
		ID:         ids.New(),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
	if actor != nil {
		actorID := actor.ID
		entry.ActorID = &actorID
	}

	var err error
	if entry.OldValues, err = marshalSnapshot(oldValues); err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	if entry.NewValues, err = marshalSnapshot(newValues); err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	if err := s.store.Insert(ctx, entry); err != nil {
		if s.mandatory {
			return fmt.Errorf("audit write: %w", err)
		}
		s.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
	return nil
}

// List returns a page of entries for an actor holding the audit-log
// permission.
func (s *AuditService) List(ctx context.Context, actor models.User, filter models.AuditFilter) ([]models.AuditLogEntry, int64, error) {
	if !authz.HasPermission(actor.Role, authz.PermViewAuditLogs) {
		return nil, 0, fmt.Errorf("%w: view_audit_logs required", ErrPermissionDenied)
	}
	return s.store.List(ctx, filter)
}

func marshalSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
