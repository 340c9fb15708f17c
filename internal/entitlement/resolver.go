// Package entitlement maps departments to their target access state.
package entitlement

import (
	"log/slog"
	"strings"

	"provisor/internal/platform/config"
	pstrings "provisor/pkg/platform/strings"
)

// Set is the target access state for one department: ordered licenses plus
// group and team memberships. Sets are derived from config at saga start and
// never persisted.
type Set struct {
	Licenses []string
	Groups   []string
	Teams    []string
}

// IsEmpty reports whether the set grants nothing.
func (s Set) IsEmpty() bool {
	return len(s.Licenses) == 0 && len(s.Groups) == 0 && len(s.Teams) == 0
}

// Fallback identifies which rung of the resolution chain produced a set.
type Fallback string

// Resolution outcomes.
const (
	// FallbackNone means the department matched a configured entry.
	FallbackNone Fallback = "none"
	// FallbackDefault means the catch-all department entry was used.
	FallbackDefault Fallback = "default"
	// FallbackEmpty means nothing matched; the empty set was returned.
	FallbackEmpty Fallback = "empty"
)

// Observer is notified when resolution falls back. The orchestrator wires
// this to audit and metrics so unconfigured departments are visible to
// operators instead of silently granting nothing.
type Observer func(department string, fallback Fallback)

// Catch-all department names, checked in order.
var fallbackDepartments = []string{"Default", "General"}

// Resolver resolves departments to entitlement sets.
//
// Resolution never fails: an unknown department falls back to the catch-all
// entry ("Default", then "General"), and when neither is configured the
// empty set is returned. An employee with no entitlements is a policy
// outcome, not an error.
type Resolver struct {
	logger   *slog.Logger
	observer Observer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithObserver registers a fallback observer.
func WithObserver(observer Observer) Option {
	return func(r *Resolver) { r.observer = observer }
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the entitlement set for a department.
//
// Matching is case-insensitive on the trimmed department name. Configured
// lists are deduplicated with order preserved, so a hand-edited config with
// a repeated group id plans one membership step, not two.
func (r *Resolver) Resolve(department string, cfg config.ProvisioningConfig) Set {
	wanted := strings.TrimSpace(department)

	if dept, ok := findDepartment(cfg.Departments, wanted); ok {
		return toSet(dept)
	}

	for _, name := range fallbackDepartments {
		if dept, ok := findDepartment(cfg.Departments, name); ok {
			r.notify(wanted, FallbackDefault)
			return toSet(dept)
		}
	}

	r.notify(wanted, FallbackEmpty)
	return Set{}
}

func (r *Resolver) notify(department string, fallback Fallback) {
	r.logger.Warn("entitlement resolution fell back",
		"department", department,
		"fallback", string(fallback))
	if r.observer != nil {
		r.observer(department, fallback)
	}
}

func findDepartment(departments []config.DepartmentConfig, name string) (config.DepartmentConfig, bool) {
	if name == "" {
		return config.DepartmentConfig{}, false
	}
	for _, dept := range departments {
		if strings.EqualFold(strings.TrimSpace(dept.Name), name) {
			return dept, true
		}
	}
	return config.DepartmentConfig{}, false
}

func toSet(dept config.DepartmentConfig) Set {
	return Set{
		Licenses: pstrings.DedupeAndTrim(dept.Licenses),
		Groups:   pstrings.DedupeAndTrim(dept.Groups),
		Teams:    pstrings.DedupeAndTrim(dept.Teams),
	}
}

// Diff computes the membership changes needed to go from old to target:
// remove what only old has, add what only target has. Licenses follow the
// same rule. Order within each list follows the source set.
func Diff(old, target Set) (remove Set, add Set) {
	remove = Set{
		Licenses: subtract(old.Licenses, target.Licenses),
		Groups:   subtract(old.Groups, target.Groups),
		Teams:    subtract(old.Teams, target.Teams),
	}
	add = Set{
		Licenses: subtract(target.Licenses, old.Licenses),
		Groups:   subtract(target.Groups, old.Groups),
		Teams:    subtract(target.Teams, old.Teams),
	}
	return remove, add
}

func subtract(from, exclude []string) []string {
	if len(from) == 0 {
		return nil
	}
	excluded := make(map[string]struct{}, len(exclude))
	for _, v := range exclude {
		excluded[v] = struct{}{}
	}
	var out []string
	for _, v := range from {
		if _, ok := excluded[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
