package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/audit"
)

func (s *Store) Write(ctx context.Context, ev audit.Event) error {
	var metadata []byte
	if len(ev.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
	}

	var userID any
	if ev.UserID != uuid.Nil {
		userID = ev.UserID
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, tenant_id, user_id, action, resource, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.TenantID, userID, ev.Action, ev.Resource, metadata, ev.CreatedAt)
	return err
}
