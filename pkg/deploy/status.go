package deploy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/rbac"
	"github.com/gatekit/gatekit/pkg/statemachine"
)

// FeatureStatus describes where one (tenant, feature) pair sits in the
// deployment lifecycle, including drift between the catalog templates and
// the permissions actually on disk.
type FeatureStatus struct {
	Feature            string             `json:"feature"`
	State              statemachine.State `json:"state"`
	Licensed           bool               `json:"licensed"`
	MissingPermissions []string           `json:"missing_permissions,omitempty"`
	DeployedAt         *time.Time         `json:"deployed_at,omitempty"`
	RevokedAt          *time.Time         `json:"revoked_at,omitempty"`
}

// Drifted reports whether a sync would change this feature: licensed but
// not fully deployed, or unlicensed with permissions still present.
func (s *FeatureStatus) Drifted() bool {
	if s.Licensed {
		return s.State != StateDeployed || len(s.MissingPermissions) > 0
	}
	return s.State == StateDeployed || s.State == StatePendingRemoval
}

// DeploymentStatus reports the lifecycle position of every catalog
// feature for the tenant, plus any recorded feature the catalog no longer
// lists. Read-only; useful for admin dashboards and drift alerts.
func (p *Pipeline) DeploymentStatus(ctx context.Context, tenantID uuid.UUID) ([]FeatureStatus, error) {
	active, err := p.licenses.ActiveFeatures(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active features: %w", err)
	}
	activeSet := make(map[string]bool, len(active))
	for _, f := range active {
		activeSet[f] = true
	}

	features, err := p.catalog.Features(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog features: %w", err)
	}

	records, err := p.records.ListRecords(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list deployment records: %w", err)
	}
	recordByFeature := make(map[string]Record, len(records))
	for _, r := range records {
		recordByFeature[r.Feature] = r
	}

	perms, err := p.store.ListPermissions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	deployed := make(map[string]bool)
	for _, perm := range perms {
		if perm.Source == rbac.SourceLicenseFeature {
			deployed[perm.Code] = true
		}
	}

	var out []FeatureStatus
	seen := make(map[string]bool, len(features))
	for _, f := range features {
		seen[f.Code] = true
		status := FeatureStatus{
			Feature:  f.Code,
			State:    StateNotLicensed,
			Licensed: activeSet[f.Code],
		}
		if r, ok := recordByFeature[f.Code]; ok {
			status.State = r.State
			status.DeployedAt = r.DeployedAt
			status.RevokedAt = r.RevokedAt
		}
		for _, tmpl := range f.sortedPermissions() {
			if !deployed[tmpl.Code] {
				status.MissingPermissions = append(status.MissingPermissions, tmpl.Code)
			}
		}
		out = append(out, status)
	}

	// Records for features the catalog dropped still matter: their
	// permissions linger until a removal pass cleans them up.
	for _, r := range records {
		if seen[r.Feature] {
			continue
		}
		out = append(out, FeatureStatus{
			Feature:    r.Feature,
			State:      r.State,
			Licensed:   activeSet[r.Feature],
			DeployedAt: r.DeployedAt,
			RevokedAt:  r.RevokedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Feature < out[j].Feature })
	return out, nil
}
