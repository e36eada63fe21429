package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/pg"
	"github.com/gatekit/gatekit/pkg/surface"
)

func (s *Store) GetBinding(ctx context.Context, tenantID uuid.UUID, surfaceID string) (*surface.Binding, error) {
	var (
		b          surface.Binding
		targetKind string
		targetID   uuid.UUID
	)
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, surface_id, target_kind, target_id, required_feature, enforces_license
		 FROM surface_bindings WHERE tenant_id = $1 AND surface_id = $2`,
		tenantID, surfaceID).Scan(&b.TenantID, &b.Surface, &targetKind, &targetID, &b.RequiredFeature, &b.EnforcesLicense)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, surface.ErrBindingNotFound
		}
		return nil, err
	}

	target, err := targetFromRow(targetKind, targetID)
	if err != nil {
		return nil, err
	}
	b.Target = target
	return &b, nil
}

func (s *Store) ListBindings(ctx context.Context, tenantID uuid.UUID) ([]surface.Binding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, surface_id, target_kind, target_id, required_feature, enforces_license
		 FROM surface_bindings WHERE tenant_id = $1 ORDER BY surface_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []surface.Binding
	for rows.Next() {
		var (
			b          surface.Binding
			targetKind string
			targetID   uuid.UUID
		)
		if err := rows.Scan(&b.TenantID, &b.Surface, &targetKind, &targetID, &b.RequiredFeature, &b.EnforcesLicense); err != nil {
			return nil, err
		}
		target, err := targetFromRow(targetKind, targetID)
		if err != nil {
			return nil, err
		}
		b.Target = target
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) SaveBinding(ctx context.Context, binding *surface.Binding) error {
	if err := binding.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO surface_bindings (tenant_id, surface_id, target_kind, target_id, required_feature, enforces_license)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id, surface_id) DO UPDATE SET
		   target_kind = EXCLUDED.target_kind,
		   target_id = EXCLUDED.target_id,
		   required_feature = EXCLUDED.required_feature,
		   enforces_license = EXCLUDED.enforces_license`,
		binding.TenantID, binding.Surface, string(binding.Target.Kind()), binding.Target.ID(),
		binding.RequiredFeature, binding.EnforcesLicense)
	return err
}

func (s *Store) DeleteBinding(ctx context.Context, tenantID uuid.UUID, surfaceID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM surface_bindings WHERE tenant_id = $1 AND surface_id = $2`,
		tenantID, surfaceID)
	return err
}

func targetFromRow(kind string, id uuid.UUID) (surface.Target, error) {
	switch surface.TargetKind(kind) {
	case surface.TargetRole:
		return surface.RoleTarget(id), nil
	case surface.TargetBundle:
		return surface.BundleTarget(id), nil
	case surface.TargetMenu:
		return surface.MenuTarget(id), nil
	default:
		return surface.Target{}, fmt.Errorf("%w: unknown target kind %q", surface.ErrInvalidBinding, kind)
	}
}
