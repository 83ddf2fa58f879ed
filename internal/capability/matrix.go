package capability

import (
	"fmt"
	"sort"

	"github.com/roach88/vfpquery/internal/plan"
)

// Backend names a backend profile.
type Backend string

const (
	VFP      Backend = "vfp"
	SQLite   Backend = "sqlite"
	Postgres Backend = "postgres"
	MySQL    Backend = "mysql"
)

// Verdict is the outcome of checking one construct.
type Verdict string

const (
	Supported            Verdict = "supported"
	UnsupportedConstruct Verdict = "unsupported_construct"
	// UnsupportedAtRuntime: the construct is valid SQL but the backend
	// may reject it for some physical column types. Only the backend can
	// tell.
	UnsupportedAtRuntime Verdict = "unsupported_at_runtime"
)

// Rule is the verdict for one stage kind on one backend.
type Rule struct {
	Verdict Verdict
	Reason  string
}

// Profile describes one backend.
type Profile struct {
	Backend Backend
	Stages  map[plan.StageKind]Rule

	// LiteralPaging: row counts of Skip and Take are written into the
	// statement text (TOP n) and cannot be parameters.
	LiteralPaging bool

	// SkipByKey: the dialect has no OFFSET, so Skip is emulated by
	// excluding the first rows by a single-column row key.
	SkipByKey bool

	// MemoRuntime lists the stage kinds that may fail at runtime when
	// they compare memo columns.
	MemoRuntime map[plan.StageKind]bool
}

// Rule returns the rule for kind. Kinds missing from the profile are
// supported.
func (p *Profile) Rule(kind plan.StageKind) Rule {
	if r, ok := p.Stages[kind]; ok {
		return r
	}
	return Rule{Verdict: Supported}
}

var noSetDifference = map[plan.StageKind]Rule{
	plan.KindIntersect: {UnsupportedConstruct, "no native intersection of result sets"},
	plan.KindExcept:    {UnsupportedConstruct, "no native difference of result sets"},
}

var profiles = map[Backend]*Profile{
	VFP: {
		Backend:       VFP,
		Stages:        noSetDifference,
		LiteralPaging: true,
		SkipByKey:     true,
		MemoRuntime: map[plan.StageKind]bool{
			plan.KindDistinct: true,
			plan.KindGroupBy:  true,
			plan.KindUnion:    true,
		},
	},
	// sqlite stands in for the legacy backend in tests, so it keeps the
	// same set operator subset.
	SQLite: {
		Backend: SQLite,
		Stages:  noSetDifference,
	},
	Postgres: {
		Backend: Postgres,
		Stages:  map[plan.StageKind]Rule{},
	},
	MySQL: {
		Backend: MySQL,
		Stages:  noSetDifference,
	},
}

// Lookup returns the profile of backend.
func Lookup(backend Backend) (*Profile, error) {
	p, ok := profiles[backend]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	return p, nil
}

// Backends lists the known backends in sorted order.
func Backends() []Backend {
	out := make([]Backend, 0, len(profiles))
	for b := range profiles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
