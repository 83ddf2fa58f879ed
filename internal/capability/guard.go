package capability

import (
	"fmt"

	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/schema"
)

// Finding records one construct that is not plainly supported.
type Finding struct {
	Construct string
	Verdict   Verdict
	Reason    string
}

// String renders the finding for logs.
func (f Finding) String() string {
	return fmt.Sprintf("%s: %s (%s)", f.Construct, f.Reason, f.Verdict)
}

// Result is the outcome of Check.
type Result struct {
	Backend  Backend
	Findings []Finding
}

// Runtime returns the findings forwarded to the backend.
func (r *Result) Runtime() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Verdict == UnsupportedAtRuntime {
			out = append(out, f)
		}
	}
	return out
}

// Check validates p against the profile of backend. It returns a
// *plan.Error with code UNSUPPORTED_CONSTRUCT for the first construct the
// backend cannot run; the Result still lists every finding up to it.
//
// Check is a pure function with no side effects.
func Check(p *plan.Plan, backend Backend) (*Result, error) {
	profile, err := Lookup(backend)
	if err != nil {
		return nil, err
	}
	g := &guard{profile: profile}
	g.checkQuery(p.Root)

	res := &Result{Backend: backend, Findings: g.findings}
	if g.err != nil {
		return res, g.err
	}
	return res, nil
}

// guard accumulates findings during traversal and remembers the first
// failure.
type guard struct {
	profile  *Profile
	findings []Finding
	err      *plan.Error
}

func (g *guard) fail(construct, format string, args ...any) {
	if g.err != nil {
		return
	}
	reason := fmt.Sprintf(format, args...)
	g.findings = append(g.findings, Finding{Construct: construct, Verdict: UnsupportedConstruct, Reason: reason})
	g.err = plan.UnsupportedConstruct(construct, "%s on backend %s", reason, g.profile.Backend)
}

func (g *guard) forward(construct, format string, args ...any) {
	g.findings = append(g.findings, Finding{
		Construct: construct,
		Verdict:   UnsupportedAtRuntime,
		Reason:    fmt.Sprintf(format, args...),
	})
}

func (g *guard) checkQuery(q *plan.Query) {
	if q == nil || g.err != nil {
		return
	}
	for _, st := range q.Stages {
		if g.err != nil {
			return
		}
		kind := st.Kind()
		if rule := g.profile.Rule(kind); rule.Verdict == UnsupportedConstruct {
			g.fail(constructName(kind), "%s", rule.Reason)
			return
		}

		switch s := st.(type) {
		case plan.Source:
			g.checkQuery(s.Sub)
		case plan.Join:
			g.checkQuery(s.Sub)
			g.checkScalar(s.On)
		case plan.Filter:
			g.checkScalar(s.Predicate)
		case plan.GroupBy:
			for _, k := range s.Keys {
				g.checkScalar(k)
			}
			if g.profile.MemoRuntime[kind] {
				g.checkMemo(kind, s.Keys)
			}
		case plan.Project:
			for _, c := range s.Columns {
				g.checkScalar(c.Expr)
			}
		case plan.Distinct:
			if g.profile.MemoRuntime[kind] {
				g.checkMemo(kind, columnExprs(q.Columns()))
			}
		case plan.OrderKey:
			g.checkScalar(s.Expr)
		case plan.Skip:
			g.checkCount(kind, s.Count)
			if g.profile.SkipByKey && !skipsNothing(s.Count) && len(q.RowKey) != 1 {
				g.fail(constructName(kind), "skipping rows needs a single-column row key, have %d columns", len(q.RowKey))
			}
		case plan.Take:
			g.checkCount(kind, s.Count)
		case plan.SetOp:
			if g.profile.MemoRuntime[kind] {
				g.checkMemo(kind, columnExprs(s.Left.Columns()))
			}
			g.checkQuery(s.Left)
			g.checkQuery(s.Right)
		}
	}
}

// skipsNothing reports a constant skip of zero or fewer rows, which
// renders as no skip at all.
func skipsNothing(count plan.Scalar) bool {
	lit, ok := count.(plan.Literal)
	if !ok {
		return false
	}
	n, ok := lit.Value.(ir.IRInt)
	return ok && n <= 0
}

func (g *guard) checkCount(kind plan.StageKind, count plan.Scalar) {
	g.checkScalar(count)
	if !g.profile.LiteralPaging {
		return
	}
	if _, ok := count.(plan.Literal); !ok {
		g.fail(constructName(kind), "the row count must be a constant")
	}
}

// checkMemo forwards constructs that compare memo columns. Whether the
// backend accepts them depends on the physical column, which only the
// backend knows.
func (g *guard) checkMemo(kind plan.StageKind, exprs []plan.Scalar) {
	for _, e := range exprs {
		if plan.TypeOf(e) == schema.TypeMemo {
			g.forward(constructName(kind), "compares memo column %s", plan.Describe(e))
		}
	}
}

func (g *guard) checkScalar(s plan.Scalar) {
	if g.err != nil {
		return
	}
	switch v := s.(type) {
	case plan.Binary:
		g.checkScalar(v.Left)
		g.checkScalar(v.Right)
	case plan.Unary:
		g.checkScalar(v.Operand)
	case plan.Func:
		for _, a := range v.Args {
			g.checkScalar(a)
		}
	case plan.Aggregate:
		if v.Arg != nil {
			g.checkScalar(v.Arg)
		}
	case plan.InList:
		g.checkScalar(v.Operand)
		for _, x := range v.Values {
			g.checkScalar(x)
		}
	case plan.Exists:
		g.checkQuery(v.Query)
	case plan.Subquery:
		g.checkQuery(v.Query)
	}
}

func columnExprs(cols []plan.Column) []plan.Scalar {
	out := make([]plan.Scalar, len(cols))
	for i, c := range cols {
		out[i] = c.Expr
	}
	return out
}

var constructNames = map[plan.StageKind]string{
	plan.KindSource:    "Source",
	plan.KindJoin:      "Join",
	plan.KindFilter:    "Where",
	plan.KindGroupBy:   "GroupBy",
	plan.KindProject:   "Select",
	plan.KindDistinct:  "Distinct",
	plan.KindOrderKey:  "OrderBy",
	plan.KindSkip:      "Skip",
	plan.KindTake:      "Take",
	plan.KindUnion:     "Union",
	plan.KindConcat:    "Concat",
	plan.KindIntersect: "Intersect",
	plan.KindExcept:    "Except",
}

func constructName(kind plan.StageKind) string {
	if n, ok := constructNames[kind]; ok {
		return n
	}
	return string(kind)
}
