package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/license"
	"github.com/gatekit/gatekit/pkg/pg"
)

func (s *Store) GetGrant(ctx context.Context, tenantID uuid.UUID, feature string) (*license.Grant, error) {
	var g license.Grant
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, feature, starts_at, expires_at, source
		 FROM license_grants WHERE tenant_id = $1 AND feature = $2`,
		tenantID, feature).Scan(&g.TenantID, &g.Feature, &g.StartsAt, &g.ExpiresAt, &g.Source)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, license.ErrGrantNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGrants(ctx context.Context, tenantID uuid.UUID) ([]license.Grant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, feature, starts_at, expires_at, source
		 FROM license_grants WHERE tenant_id = $1 ORDER BY feature`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []license.Grant
	for rows.Next() {
		var g license.Grant
		if err := rows.Scan(&g.TenantID, &g.Feature, &g.StartsAt, &g.ExpiresAt, &g.Source); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) SaveGrant(ctx context.Context, grant *license.Grant) error {
	if grant == nil || grant.TenantID == uuid.Nil || grant.Feature == "" {
		return license.ErrInvalidGrant
	}
	if grant.StartsAt.IsZero() {
		grant.StartsAt = time.Now()
	}
	if grant.ExpiresAt != nil && !grant.ExpiresAt.After(grant.StartsAt) {
		return license.ErrInvalidGrant
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO license_grants (tenant_id, feature, starts_at, expires_at, source)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, feature) DO UPDATE SET
		   starts_at = EXCLUDED.starts_at,
		   expires_at = EXCLUDED.expires_at,
		   source = EXCLUDED.source`,
		grant.TenantID, grant.Feature, grant.StartsAt, grant.ExpiresAt, grant.Source)
	return err
}

func (s *Store) RevokeGrant(ctx context.Context, tenantID uuid.UUID, feature string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM license_grants WHERE tenant_id = $1 AND feature = $2`,
		tenantID, feature)
	return err
}
