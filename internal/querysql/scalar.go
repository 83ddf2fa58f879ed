package querysql

import (
	"strings"

	"github.com/roach88/vfpquery/internal/param"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/schema"
)

// Operator precedence, loosest first. A subexpression binding looser than
// its context is parenthesized.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precUnary
	precAtom
)

var binaryOps = map[plan.ScalarOp]struct {
	sql  string
	prec int
}{
	plan.OpEq:  {"=", precCompare},
	plan.OpNe:  {"<>", precCompare},
	plan.OpLt:  {"<", precCompare},
	plan.OpLe:  {"<=", precCompare},
	plan.OpGt:  {">", precCompare},
	plan.OpGe:  {">=", precCompare},
	plan.OpAnd: {"AND", precAnd},
	plan.OpOr:  {"OR", precOr},
	plan.OpAdd: {"+", precAdd},
	plan.OpSub: {"-", precAdd},
	plan.OpMul: {"*", precMul},
	plan.OpDiv: {"/", precMul},
}

var aggregateNames = map[plan.AggregateOp]string{
	plan.AggCount: "COUNT",
	plan.AggSum:   "SUM",
	plan.AggMin:   "MIN",
	plan.AggMax:   "MAX",
	plan.AggAvg:   "AVG",
}

func (w *writer) precedence(s plan.Scalar) int {
	switch v := s.(type) {
	case plan.Binary:
		if v.Op == plan.OpConcat {
			if w.d.Concat == "" {
				return precAtom
			}
			return precAdd
		}
		return binaryOps[v.Op].prec
	case plan.Unary:
		switch v.Op {
		case plan.OpNot:
			return precNot
		case plan.OpNeg:
			return precUnary
		}
		return precCompare
	case plan.InList:
		return precCompare
	case plan.Func:
		if isCall(w.d.Functions[v.Name]) {
			return precAtom
		}
		return precCompare
	case plan.Literal:
		// keeps "-" from meeting a leading minus sign
		if lit, ok := w.d.Literal(v.Value); ok && strings.HasPrefix(lit, "-") {
			return precUnary - 1
		}
	}
	return precAtom
}

// scalar writes s, parenthesized when it binds looser than ctx.
func (w *writer) scalar(s plan.Scalar, ctx int) error {
	if w.precedence(s) < ctx {
		w.write("(")
		defer w.write(")")
	}

	switch v := s.(type) {
	case plan.ColumnRef:
		if v.Alias != "" {
			w.write(v.Alias, ".")
		}
		w.write(w.d.Ident(v.Column))
	case plan.Literal:
		if lit, ok := w.d.Literal(v.Value); ok {
			w.write(lit)
		} else {
			w.placeholder(param.New("literal", param.Fixed{Value: v.Value}))
		}
	case plan.ParamRef:
		w.placeholder(v.Param)
	case plan.Binary:
		return w.binary(v)
	case plan.Unary:
		return w.unary(v)
	case plan.Func:
		return w.function(v)
	case plan.Aggregate:
		w.write(aggregateNames[v.Op], "(")
		if v.Arg == nil {
			w.write("*")
		} else if err := w.scalar(v.Arg, 0); err != nil {
			return err
		}
		w.write(")")
	case plan.InList:
		if err := w.scalar(v.Operand, precCompare+1); err != nil {
			return err
		}
		w.write(" IN (")
		for i, x := range v.Values {
			if i > 0 {
				w.write(", ")
			}
			if err := w.scalar(x, 0); err != nil {
				return err
			}
		}
		w.write(")")
	case plan.Exists:
		w.write("EXISTS (")
		if err := w.query(v.Query); err != nil {
			return err
		}
		w.write(")")
	case plan.Subquery:
		w.write("(")
		if err := w.query(v.Query); err != nil {
			return err
		}
		w.write(")")
	default:
		return plan.UnsupportedConstruct("scalar", "cannot render %T", s)
	}
	return nil
}

func (w *writer) binary(v plan.Binary) error {
	if v.Op == plan.OpConcat && w.d.Concat == "" {
		w.write("CONCAT(")
		if err := w.scalar(v.Left, 0); err != nil {
			return err
		}
		w.write(", ")
		if err := w.scalar(v.Right, 0); err != nil {
			return err
		}
		w.write(")")
		return nil
	}

	op, prec := binaryOps[v.Op].sql, binaryOps[v.Op].prec
	if v.Op == plan.OpConcat {
		op, prec = w.d.Concat, precAdd
	}
	if v.Op == plan.OpEq && isText(v.Left, v.Right) {
		op = w.d.StringEq
	}

	// Left associative: the right operand of an equal-precedence
	// operator keeps its parentheses.
	left := prec
	if prec == precCompare {
		left = prec + 1
	}
	if err := w.scalar(v.Left, left); err != nil {
		return err
	}
	w.write(" ", op, " ")
	return w.scalar(v.Right, prec+1)
}

func isText(operands ...plan.Scalar) bool {
	for _, o := range operands {
		switch plan.TypeOf(o) {
		case schema.TypeString, schema.TypeMemo:
			return true
		}
	}
	return false
}

func (w *writer) unary(v plan.Unary) error {
	switch v.Op {
	case plan.OpNot:
		w.write("NOT ")
		return w.scalar(v.Operand, precNot)
	case plan.OpNeg:
		w.write("-")
		return w.scalar(v.Operand, precUnary)
	}
	if err := w.scalar(v.Operand, precCompare+1); err != nil {
		return err
	}
	if v.Op == plan.OpIsNull {
		w.write(" IS NULL")
	} else {
		w.write(" IS NOT NULL")
	}
	return nil
}

// function expands the dialect template of a canonical function. An
// argument standing alone between a call's parentheses or commas needs no
// parentheses of its own.
func (w *writer) function(f plan.Func) error {
	tmpl, ok := w.d.Functions[f.Name]
	if !ok {
		return plan.UnsupportedFunction(f.Name, w.d.Name)
	}

	for i := 0; i < len(tmpl); {
		open := strings.IndexByte(tmpl[i:], '{')
		if open < 0 {
			w.write(tmpl[i:])
			break
		}
		open += i
		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			w.write(tmpl[i:])
			break
		}
		end += open
		w.write(tmpl[i:open])

		n := 0
		for _, c := range tmpl[open+1 : end] {
			n = n*10 + int(c-'0')
		}
		if n >= len(f.Args) {
			return plan.Translation("function %s takes more than %d arguments", f.Name, len(f.Args))
		}
		ctx := precAtom
		if standalone(tmpl, open, end) {
			ctx = 0
		}
		if err := w.scalar(f.Args[n], ctx); err != nil {
			return err
		}
		i = end + 1
	}
	return nil
}

func standalone(tmpl string, open, end int) bool {
	before := strings.TrimRight(tmpl[:open], " ")
	after := strings.TrimLeft(tmpl[end+1:], " ")
	if before == "" || after == "" {
		return false
	}
	b, a := before[len(before)-1], after[0]
	return (b == '(' || b == ',') && (a == ')' || a == ',')
}

// isCall reports whether tmpl is a single function call, e.g. "UPPER({0})".
func isCall(tmpl string) bool {
	if !strings.ContainsAny(tmpl, " {(") {
		return true
	}
	open := strings.IndexByte(tmpl, '(')
	if open <= 0 || !strings.HasSuffix(tmpl, ")") {
		return false
	}
	for _, c := range tmpl[:open] {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	depth := 0
	for i := open; i < len(tmpl); i++ {
		switch tmpl[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(tmpl)-1 {
				return false
			}
		}
	}
	return true
}
