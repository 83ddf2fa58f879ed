package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/param"
	"github.com/roach88/vfpquery/internal/plan"
)

// SQLCompiler renders logical plans as statements of one dialect.
//
// Values written in the expression are inlined as literals when the
// dialect can spell them; parameters always become placeholders, in the
// order they appear in the text.
type SQLCompiler struct {
	dialect *Dialect
}

// NewSQLCompiler creates a compiler for d.
func NewSQLCompiler(d *Dialect) *SQLCompiler {
	return &SQLCompiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *SQLCompiler) Dialect() *Dialect {
	return c.dialect
}

// Compile renders p. It fails with UNSUPPORTED_FUNCTION when a function
// has no mapping in the dialect. No partial text is returned on error.
func (c *SQLCompiler) Compile(p *plan.Plan) (*Statement, error) {
	if p == nil || p.Root == nil {
		return nil, fmt.Errorf("cannot compile nil plan")
	}
	return c.CompileQuery(p.Root)
}

// CompileQuery renders a single query block tree.
func (c *SQLCompiler) CompileQuery(q *plan.Query) (*Statement, error) {
	w := &writer{d: c.dialect}
	if err := w.query(q); err != nil {
		return nil, err
	}
	return &Statement{
		Text:    w.b.String(),
		Dialect: c.dialect.Name,
		Slots:   w.slots,
		dialect: c.dialect,
	}, nil
}

// writer renders text strictly left to right so that slots line up with
// placeholders.
type writer struct {
	d     *Dialect
	b     strings.Builder
	slots []param.Parameter
	subs  int
}

func (w *writer) write(parts ...string) {
	for _, p := range parts {
		w.b.WriteString(p)
	}
}

func (w *writer) placeholder(p param.Parameter) {
	w.slots = append(w.slots, p)
	w.b.WriteString(w.d.Placeholder(len(w.slots)))
}

// block is a SELECT block with its stages sorted by clause.
type block struct {
	source   plan.Source
	joins    []plan.Join
	filters  []plan.Scalar
	groupBy  []plan.Scalar
	columns  []plan.Column
	distinct bool
	order    []plan.OrderKey
	skip     plan.Scalar
	take     plan.Scalar
	rowKey   []plan.Scalar
}

func splitBlock(q *plan.Query) (*block, error) {
	b := &block{rowKey: q.RowKey}
	for _, st := range q.Stages {
		switch s := st.(type) {
		case plan.Source:
			b.source = s
		case plan.Join:
			b.joins = append(b.joins, s)
		case plan.Filter:
			b.filters = append(b.filters, s.Predicate)
		case plan.GroupBy:
			b.groupBy = append(b.groupBy, s.Keys...)
		case plan.Project:
			b.columns = s.Columns
		case plan.Distinct:
			b.distinct = true
		case plan.OrderKey:
			b.order = append(b.order, s)
		case plan.Skip:
			b.skip = s.Count
		case plan.Take:
			b.take = s.Count
		default:
			return nil, fmt.Errorf("unexpected %s stage in a select block", st.Kind())
		}
	}
	if b.source.Table == "" && b.source.Sub == nil {
		return nil, fmt.Errorf("select block has no source")
	}
	return b, nil
}

func (w *writer) query(q *plan.Query) error {
	if len(q.Stages) == 1 {
		if s, ok := q.Stages[0].(plan.SetOp); ok {
			return w.setOp(s)
		}
	}
	b, err := splitBlock(q)
	if err != nil {
		return err
	}
	if w.d.Paging == PagingTop {
		return w.topBlock(b)
	}
	return w.limitBlock(b)
}

func (w *writer) limitBlock(b *block) error {
	if err := w.selectList(b, nil); err != nil {
		return err
	}
	if err := w.body(b); err != nil {
		return err
	}
	if err := w.orderBy(b.order, nil); err != nil {
		return err
	}

	switch {
	case b.take != nil:
		w.write(" LIMIT ")
		if err := w.scalar(b.take, 0); err != nil {
			return err
		}
	case b.skip != nil && w.d.OffsetOnlyLimit != "":
		w.write(" LIMIT ", w.d.OffsetOnlyLimit)
	}
	if b.skip != nil {
		w.write(" OFFSET ")
		if err := w.scalar(b.skip, 0); err != nil {
			return err
		}
	}
	return nil
}

// topBlock renders a block for dialects limited to TOP n. Skipping m rows
// becomes
//
//	WHERE ... AND key NOT IN (SELECT TOP m key FROM ... WHERE ... ORDER BY ...)
//
// TOP 0 is not valid, so taking no rows becomes a false condition and
// skipping no rows is dropped.
func (w *writer) topBlock(b *block) error {
	take, skip := b.take, b.skip
	var extra []func() error
	if isZero(take) {
		take = nil
		extra = append(extra, func() error {
			w.write(w.d.False)
			return nil
		})
	}
	if isZero(skip) {
		skip = nil
	}

	if err := w.selectList(b, take); err != nil {
		return err
	}

	if skip != nil {
		if len(b.rowKey) != 1 {
			return plan.UnsupportedConstruct("Skip", "skipping rows needs a single-column row key on dialect %s", w.d.Name)
		}
		extra = append(extra, func() error {
			if err := w.scalar(b.rowKey[0], precCompare+1); err != nil {
				return err
			}
			w.write(" NOT IN (SELECT ")
			if err := w.top("Skip", skip); err != nil {
				return err
			}
			if err := w.scalar(b.rowKey[0], 0); err != nil {
				return err
			}
			if err := w.body(b); err != nil {
				return err
			}
			if err := w.orderBy(b.order, nil); err != nil {
				return err
			}
			w.write(")")
			return nil
		})
	}

	if err := w.body(b, extra...); err != nil {
		return err
	}
	return w.orderBy(b.order, b.columns)
}

func isZero(count plan.Scalar) bool {
	lit, ok := count.(plan.Literal)
	if !ok {
		return false
	}
	n, ok := lit.Value.(ir.IRInt)
	return ok && n <= 0
}

func (w *writer) top(construct string, count plan.Scalar) error {
	if _, ok := count.(plan.Literal); !ok {
		return plan.UnsupportedConstruct(construct, "row counts must be constants on dialect %s", w.d.Name)
	}
	w.write("TOP ")
	if err := w.scalar(count, 0); err != nil {
		return err
	}
	w.write(" ")
	return nil
}

func (w *writer) selectList(b *block, top plan.Scalar) error {
	w.write("SELECT ")
	if b.distinct {
		w.write("DISTINCT ")
	}
	if top != nil {
		if err := w.top("Take", top); err != nil {
			return err
		}
	}
	if len(b.columns) == 0 {
		w.write("*")
		return nil
	}
	for i, col := range b.columns {
		if i > 0 {
			w.write(", ")
		}
		if err := w.scalar(col.Expr, 0); err != nil {
			return err
		}
		w.write(" AS ", w.d.Ident(col.Name))
	}
	return nil
}

// body writes FROM, JOIN, WHERE and GROUP BY. Each extra writes one more
// WHERE conjunct.
func (w *writer) body(b *block, extra ...func() error) error {
	w.write(" FROM ")
	if err := w.from(b.source.Table, b.source.Alias, b.source.Sub); err != nil {
		return err
	}
	for _, j := range b.joins {
		if j.Type == plan.LeftJoin {
			w.write(" LEFT JOIN ")
		} else {
			w.write(" INNER JOIN ")
		}
		if err := w.from(j.Table, j.Alias, j.Sub); err != nil {
			return err
		}
		w.write(" ON ")
		if err := w.scalar(j.On, 0); err != nil {
			return err
		}
	}

	if len(b.filters) > 0 || len(extra) > 0 {
		w.write(" WHERE ")
		for i, f := range b.filters {
			if i > 0 {
				w.write(" AND ")
			}
			if err := w.scalar(f, precAnd); err != nil {
				return err
			}
		}
		for i, fn := range extra {
			if i > 0 || len(b.filters) > 0 {
				w.write(" AND ")
			}
			if err := fn(); err != nil {
				return err
			}
		}
	}

	if len(b.groupBy) > 0 {
		w.write(" GROUP BY ")
		for i, k := range b.groupBy {
			if i > 0 {
				w.write(", ")
			}
			if err := w.scalar(k, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *writer) from(table, alias string, sub *plan.Query) error {
	if sub == nil {
		w.write(w.d.Ident(table), " ", alias)
		return nil
	}
	w.write("(")
	if err := w.query(sub); err != nil {
		return err
	}
	w.write(") AS ", alias)
	return nil
}

// orderBy writes the ORDER BY clause. When the dialect orders by position
// and columns is set, keys found in the select list become positions.
func (w *writer) orderBy(keys []plan.OrderKey, columns []plan.Column) error {
	if len(keys) == 0 {
		return nil
	}
	var positions map[string]int
	if w.d.OrderByPosition && len(columns) > 0 {
		positions = make(map[string]int, len(columns))
		for i, c := range columns {
			d := plan.Describe(c.Expr)
			if _, dup := positions[d]; !dup {
				positions[d] = i + 1
			}
		}
	}

	w.write(" ORDER BY ")
	for i, k := range keys {
		if i > 0 {
			w.write(", ")
		}
		if pos, ok := positions[plan.Describe(k.Expr)]; ok {
			w.write(strconv.Itoa(pos))
		} else if err := w.scalar(k.Expr, 0); err != nil {
			return err
		}
		if k.Descending {
			w.write(" DESC")
		}
	}
	return nil
}

var setKeywords = map[expr.SetKind]string{
	expr.Union:     " UNION ",
	expr.Concat:    " UNION ALL ",
	expr.Intersect: " INTERSECT ",
	expr.Except:    " EXCEPT ",
}

func (w *writer) setOp(s plan.SetOp) error {
	if w.d.ParenSetOperands {
		w.write("(")
		if err := w.query(s.Left); err != nil {
			return err
		}
		w.write(")", setKeywords[s.Op], "(")
		if err := w.query(s.Right); err != nil {
			return err
		}
		w.write(")")
		return nil
	}

	// Without parentheses operators associate to the left, so a compound
	// right operand goes into a derived table.
	if err := w.query(s.Left); err != nil {
		return err
	}
	w.write(setKeywords[s.Op])
	if !isSetOp(s.Right) {
		return w.query(s.Right)
	}
	alias := "s" + strconv.Itoa(w.subs)
	w.subs++
	w.write("SELECT * FROM (")
	if err := w.query(s.Right); err != nil {
		return err
	}
	w.write(") AS ", alias)
	return nil
}

func isSetOp(q *plan.Query) bool {
	if len(q.Stages) != 1 {
		return false
	}
	_, ok := q.Stages[0].(plan.SetOp)
	return ok
}
