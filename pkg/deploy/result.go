package deploy

import "fmt"

// Warning is a non-fatal problem encountered during deployment: a
// conflicting manual permission, a missing role template. Deployment
// continues past warnings.
type Warning struct {
	Feature string `json:"feature"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason"`
}

func (w Warning) String() string {
	if w.Code == "" {
		return fmt.Sprintf("%s: %s", w.Feature, w.Reason)
	}
	return fmt.Sprintf("%s/%s: %s", w.Feature, w.Code, w.Reason)
}

// Result reports what a single deployment or removal pass changed.
type Result struct {
	Feature string `json:"feature,omitempty"`

	PermissionsCreated int `json:"permissions_created"`
	RoleLinksCreated   int `json:"role_links_created"`
	BindingsCreated    int `json:"bindings_created"`

	PermissionsRemoved int `json:"permissions_removed"`
	RoleLinksRemoved   int `json:"role_links_removed"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// Changed reports whether the pass performed any write.
func (r *Result) Changed() bool {
	return r.PermissionsCreated+r.RoleLinksCreated+r.BindingsCreated+
		r.PermissionsRemoved+r.RoleLinksRemoved > 0
}

func (r *Result) warnf(feature, code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{
		Feature: feature,
		Code:    code,
		Reason:  fmt.Sprintf(format, args...),
	})
}

// FeatureError is a per-feature failure collected during a tenant sync.
type FeatureError struct {
	Feature string `json:"feature"`
	Err     error  `json:"-"`
}

func (e FeatureError) Error() string {
	return fmt.Sprintf("feature %s: %v", e.Feature, e.Err)
}

func (e FeatureError) Unwrap() error {
	return e.Err
}

// SyncResult aggregates a full tenant sync: per-feature deployment
// results, the removal pass, and every isolated failure.
type SyncResult struct {
	Deployed []Result       `json:"deployed,omitempty"`
	Removal  *Result        `json:"removal,omitempty"`
	Errors   []FeatureError `json:"errors,omitempty"`
}

// Changed reports whether the sync performed any write.
func (r *SyncResult) Changed() bool {
	for i := range r.Deployed {
		if r.Deployed[i].Changed() {
			return true
		}
	}
	return r.Removal != nil && r.Removal.Changed()
}

// Warnings flattens all warnings across the sync.
func (r *SyncResult) Warnings() []Warning {
	var out []Warning
	for i := range r.Deployed {
		out = append(out, r.Deployed[i].Warnings...)
	}
	if r.Removal != nil {
		out = append(out, r.Removal.Warnings...)
	}
	return out
}
