package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/deploy"
	"github.com/gatekit/gatekit/pkg/pg"
)

func (s *Store) GetRecord(ctx context.Context, tenantID uuid.UUID, feature string) (*deploy.Record, error) {
	var r deploy.Record
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, feature, state, deployed_at, revoked_at, updated_at
		 FROM deployment_records WHERE tenant_id = $1 AND feature = $2`,
		tenantID, feature).Scan(&r.TenantID, &r.Feature, &r.State, &r.DeployedAt, &r.RevokedAt, &r.UpdatedAt)
	if err != nil {
		// A pair with no record is simply not licensed yet.
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRecords(ctx context.Context, tenantID uuid.UUID) ([]deploy.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, feature, state, deployed_at, revoked_at, updated_at
		 FROM deployment_records WHERE tenant_id = $1 ORDER BY feature`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deploy.Record
	for rows.Next() {
		var r deploy.Record
		if err := rows.Scan(&r.TenantID, &r.Feature, &r.State, &r.DeployedAt, &r.RevokedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveRecord(ctx context.Context, record *deploy.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO deployment_records (tenant_id, feature, state, deployed_at, revoked_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id, feature) DO UPDATE SET
		   state = EXCLUDED.state,
		   deployed_at = EXCLUDED.deployed_at,
		   revoked_at = EXCLUDED.revoked_at,
		   updated_at = EXCLUDED.updated_at`,
		record.TenantID, record.Feature, record.State, record.DeployedAt, record.RevokedAt, record.UpdatedAt)
	return err
}
