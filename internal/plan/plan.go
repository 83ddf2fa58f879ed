package plan

import (
	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/param"
	"github.com/roach88/vfpquery/internal/schema"
)

// StageKind names a stage for the capability matrix and logs.
type StageKind string

const (
	KindSource    StageKind = "source"
	KindJoin      StageKind = "join"
	KindFilter    StageKind = "filter"
	KindGroupBy   StageKind = "groupby"
	KindProject   StageKind = "project"
	KindDistinct  StageKind = "distinct"
	KindOrderKey  StageKind = "orderkey"
	KindSkip      StageKind = "skip"
	KindTake      StageKind = "take"
	KindUnion     StageKind = "union"
	KindConcat    StageKind = "concat"
	KindIntersect StageKind = "intersect"
	KindExcept    StageKind = "except"
)

// Stage is a sealed interface implemented by the relational stages.
type Stage interface {
	Kind() StageKind
}

// Source is the FROM item of a block: a table or a derived table.
type Source struct {
	Table string
	Alias string
	Sub   *Query
}

// JoinKind is the join type.
type JoinKind string

const (
	InnerJoin JoinKind = "inner"
	LeftJoin  JoinKind = "left"
)

// Join adds a table or derived table to the block.
type Join struct {
	Type  JoinKind
	Table string
	Alias string
	Sub   *Query
	On    Scalar
}

// Filter is a WHERE conjunct.
type Filter struct {
	Predicate Scalar
}

// GroupBy lists grouping keys.
type GroupBy struct {
	Keys []Scalar
}

// Column is one projected column.
type Column struct {
	Name string
	Expr Scalar
}

// Project is the select list.
type Project struct {
	Columns []Column
}

// Distinct removes duplicate rows.
type Distinct struct{}

// OrderKey is one ORDER BY key.
type OrderKey struct {
	Expr       Scalar
	Descending bool
}

// Skip bypasses Count rows.
type Skip struct {
	Count Scalar
}

// Take limits the block to Count rows.
type Take struct {
	Count Scalar
}

// SetOp combines two blocks with identical column layouts.
type SetOp struct {
	Op    expr.SetKind
	Left  *Query
	Right *Query
}

func (Source) Kind() StageKind   { return KindSource }
func (Join) Kind() StageKind     { return KindJoin }
func (Filter) Kind() StageKind   { return KindFilter }
func (GroupBy) Kind() StageKind  { return KindGroupBy }
func (Project) Kind() StageKind  { return KindProject }
func (Distinct) Kind() StageKind { return KindDistinct }
func (OrderKey) Kind() StageKind { return KindOrderKey }
func (Skip) Kind() StageKind     { return KindSkip }
func (Take) Kind() StageKind     { return KindTake }

func (s SetOp) Kind() StageKind {
	switch s.Op {
	case expr.Concat:
		return KindConcat
	case expr.Intersect:
		return KindIntersect
	case expr.Except:
		return KindExcept
	}
	return KindUnion
}

// Query is one SELECT block or set operation.
type Query struct {
	Stages []Stage

	// RowKey identifies a row of the block. Dialects without OFFSET use it
	// to emulate Skip. Nil when rows have no identity (Concat).
	RowKey []Scalar
}

// Columns returns the select list of the block, or of the left operand
// of a set operation.
func (q *Query) Columns() []Column {
	for _, s := range q.Stages {
		switch st := s.(type) {
		case Project:
			return st.Columns
		case SetOp:
			return st.Left.Columns()
		}
	}
	return nil
}

// ResultKind says how the rows of a plan become the query result.
type ResultKind string

const (
	// ResultSequence: one value per row, or per run of rows sharing RowKey.
	ResultSequence ResultKind = "sequence"
	// ResultSingle: a single scalar (terminal aggregate).
	ResultSingle ResultKind = "single"
	// ResultAny: true when the single count column is non-zero.
	ResultAny ResultKind = "any"
	// ResultAll: true when the single count column is zero.
	ResultAll ResultKind = "all"
)

// Plan is the translated query.
type Plan struct {
	Root   *Query
	Shape  *Shape
	Result ResultKind

	// RowKey lists the columns identifying a result element when nested
	// collections make one element span several rows. Nil otherwise.
	RowKey []int

	// Entity is the root entity set, for logs.
	Entity string
}

// ShapeKind classifies shaping nodes.
type ShapeKind string

const (
	ShapeScalar     ShapeKind = "scalar"
	ShapeEntity     ShapeKind = "entity"
	ShapeRecord     ShapeKind = "record"
	ShapeCollection ShapeKind = "collection"
	// ShapeReference is a to-one navigation loaded by Include: an entity,
	// or null when its key columns are null.
	ShapeReference ShapeKind = "reference"
)

// Shape is a node of the result shaping tree.
type Shape struct {
	Kind ShapeKind

	// Scalar
	Column int
	Type   schema.ColumnType

	// Entity, Reference
	Entity        string
	Discriminator int

	// Entity, Record, Reference
	Fields []ShapeField

	// Collection, Reference: columns identifying an element; all null
	// means no element.
	Key  []int
	Elem *Shape
}

// ShapeField is a named member of an entity or record shape.
type ShapeField struct {
	Name  string
	Shape *Shape
}

// Scalar is a sealed interface implemented by scalar expressions.
type Scalar interface {
	scalar()
}

// ColumnRef reads a column of a FROM item. Alias is empty for the
// columns of a set operation, which are only addressed by name.
type ColumnRef struct {
	Alias  string
	Column string
	Type   schema.ColumnType
}

// Literal is a constant inlined when it can be written in the dialect.
type Literal struct {
	Value ir.IRValue
}

// ParamRef is a deferred parameter.
type ParamRef struct {
	Param param.Parameter
}

// ScalarOp is a binary scalar operator.
type ScalarOp string

const (
	OpEq     ScalarOp = "eq"
	OpNe     ScalarOp = "ne"
	OpLt     ScalarOp = "lt"
	OpLe     ScalarOp = "le"
	OpGt     ScalarOp = "gt"
	OpGe     ScalarOp = "ge"
	OpAnd    ScalarOp = "and"
	OpOr     ScalarOp = "or"
	OpAdd    ScalarOp = "add"
	OpSub    ScalarOp = "sub"
	OpMul    ScalarOp = "mul"
	OpDiv    ScalarOp = "div"
	OpConcat ScalarOp = "concat"
)

// Binary applies a binary operator.
type Binary struct {
	Op    ScalarOp
	Left  Scalar
	Right Scalar
}

// UnaryOp is a unary scalar operator.
type UnaryOp string

const (
	OpNot     UnaryOp = "not"
	OpNeg     UnaryOp = "neg"
	OpIsNull  UnaryOp = "isnull"
	OpNotNull UnaryOp = "notnull"
)

// Unary applies a unary operator.
type Unary struct {
	Op      UnaryOp
	Operand Scalar
}

// Func is a canonical function call resolved by the dialect.
type Func struct {
	Name string
	Args []Scalar
}

// AggregateOp is an SQL aggregate.
type AggregateOp string

const (
	AggCount AggregateOp = "count"
	AggSum   AggregateOp = "sum"
	AggMin   AggregateOp = "min"
	AggMax   AggregateOp = "max"
	AggAvg   AggregateOp = "avg"
)

// Aggregate applies an aggregate to Arg, or counts rows when Arg is nil.
type Aggregate struct {
	Op  AggregateOp
	Arg Scalar
}

// InList tests membership in a list of values.
type InList struct {
	Operand Scalar
	Values  []Scalar
}

// Exists tests whether a subquery returns rows.
type Exists struct {
	Query *Query
}

// Subquery is a single-value subquery.
type Subquery struct {
	Query *Query
}

func (ColumnRef) scalar() {}
func (Literal) scalar()   {}
func (ParamRef) scalar()  {}
func (Binary) scalar()    {}
func (Unary) scalar()     {}
func (Func) scalar()      {}
func (Aggregate) scalar() {}
func (InList) scalar()    {}
func (Exists) scalar()    {}
func (Subquery) scalar()  {}

// TypeOf returns the best known logical type of s, or "" when unknown.
func TypeOf(s Scalar) schema.ColumnType {
	switch v := s.(type) {
	case ColumnRef:
		return v.Type
	case Literal:
		return literalType(v.Value)
	case Binary:
		switch v.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
			return schema.TypeBool
		case OpConcat:
			return schema.TypeString
		}
		if t := TypeOf(v.Left); t != "" {
			return t
		}
		return TypeOf(v.Right)
	case Unary:
		if v.Op == OpNeg {
			return TypeOf(v.Operand)
		}
		return schema.TypeBool
	case Aggregate:
		switch v.Op {
		case AggCount:
			return schema.TypeInt
		case AggAvg:
			return schema.TypeDecimal
		}
		return TypeOf(v.Arg)
	case InList, Exists:
		return schema.TypeBool
	case Subquery:
		cols := v.Query.Columns()
		if len(cols) == 1 {
			return TypeOf(cols[0].Expr)
		}
	case Func:
		return funcType(v)
	}
	return ""
}

func literalType(v ir.IRValue) schema.ColumnType {
	switch v.(type) {
	case ir.IRString:
		return schema.TypeString
	case ir.IRInt:
		return schema.TypeInt
	case ir.IRBool:
		return schema.TypeBool
	case ir.IRDecimal:
		return schema.TypeDecimal
	case ir.IRTime:
		return schema.TypeDateTime
	}
	return ""
}

func funcType(f Func) schema.ColumnType {
	switch f.Name {
	case "StartsWith", "EndsWith", "Contains", "HasValue":
		return schema.TypeBool
	case "ToUpper", "ToLower", "Trim", "Substring":
		return schema.TypeString
	case "Length", "Year", "Month", "Day", "DiffYears", "DiffDays", "Atc":
		return schema.TypeInt
	case "CurrentDateTime":
		return schema.TypeDateTime
	case "Abs", "Round":
		if len(f.Args) > 0 {
			return TypeOf(f.Args[0])
		}
	}
	return ""
}
