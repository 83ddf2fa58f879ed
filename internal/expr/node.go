package expr

import (
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/param"
)

// Handle addresses a node in an Arena.
type Handle int32

// NoHandle marks an absent optional operand.
const NoHandle Handle = -1

// Valid reports whether h refers to a node.
func (h Handle) Valid() bool { return h >= 0 }

// Node is a sealed interface implemented by every expression node.
type Node interface {
	exprNode()
}

// Lambda is an anonymous function operand.
type Lambda struct {
	Params []string
	Body   Handle
}

// Set operator kinds.
type SetKind string

const (
	Union     SetKind = "union"
	Concat    SetKind = "concat"
	Intersect SetKind = "intersect"
	Except    SetKind = "except"
)

// Aggregate operators.
type AggregateOp string

const (
	Count   AggregateOp = "count"
	Sum     AggregateOp = "sum"
	Min     AggregateOp = "min"
	Max     AggregateOp = "max"
	Average AggregateOp = "average"
)

// Quantifier kinds.
type QuantifierKind string

const (
	Any QuantifierKind = "any"
	All QuantifierKind = "all"
)

// Binary operators.
type BinaryOp string

const (
	Eq  BinaryOp = "eq"
	Ne  BinaryOp = "ne"
	Lt  BinaryOp = "lt"
	Le  BinaryOp = "le"
	Gt  BinaryOp = "gt"
	Ge  BinaryOp = "ge"
	And BinaryOp = "and"
	Or  BinaryOp = "or"
	Add BinaryOp = "add"
	Sub BinaryOp = "sub"
	Mul BinaryOp = "mul"
	Div BinaryOp = "div"
)

// Unary operators.
type UnaryOp string

const (
	Not UnaryOp = "not"
	Neg UnaryOp = "neg"
)

// Source is the root entity set of a query.
type Source struct {
	Entity string
}

// Filter keeps elements of Source for which Predicate holds.
type Filter struct {
	Source    Handle
	Predicate Lambda
}

// Project maps each element through Selector.
type Project struct {
	Source   Handle
	Selector Lambda
}

// FlatMap expands each element into the collection produced by Collection.
// Result, when present, takes (element, item) and shapes the output;
// otherwise the items themselves are produced.
type FlatMap struct {
	Source     Handle
	Collection Lambda
	Result     *Lambda
}

// Join is an inner equi-join of Outer and Inner. Result takes
// (outer, inner).
type Join struct {
	Outer    Handle
	Inner    Handle
	OuterKey Lambda
	InnerKey Lambda
	Result   Lambda
}

// GroupBy partitions Source by Key. Each element of the result is a group
// exposing Key and its member elements.
type GroupBy struct {
	Source Handle
	Key    Lambda
}

// OrderBy starts a new ordering.
type OrderBy struct {
	Source     Handle
	Key        Lambda
	Descending bool
}

// ThenBy appends a key to the current ordering.
type ThenBy struct {
	Source     Handle
	Key        Lambda
	Descending bool
}

// Skip bypasses Count elements. Count is a scalar node (constant or
// parameter).
type Skip struct {
	Source Handle
	Count  Handle
}

// Take limits the result to Count elements.
type Take struct {
	Source Handle
	Count  Handle
}

// SetOp combines two sequences.
type SetOp struct {
	Kind  SetKind
	Left  Handle
	Right Handle
}

// Distinct removes duplicate elements.
type Distinct struct {
	Source Handle
}

// TypeFilter keeps elements of the named type or its subtypes.
type TypeFilter struct {
	Source Handle
	Type   string
}

// Include requests eager loading of a dotted navigation path.
type Include struct {
	Source Handle
	Path   string
}

// Aggregate reduces Source to a single value. Selector is nil for Count
// and for aggregates over scalar sequences. Predicate optionally restricts
// Count.
type Aggregate struct {
	Source    Handle
	Op        AggregateOp
	Selector  *Lambda
	Predicate *Lambda
}

// Quantifier tests Predicate over Source. A nil Predicate on Any asks
// whether Source is non-empty.
type Quantifier struct {
	Source    Handle
	Kind      QuantifierKind
	Predicate *Lambda
}

// Constant is a value known when the query is built.
type Constant struct {
	Value ir.IRValue
}

// ParameterRef is a value read when the statement executes.
type ParameterRef struct {
	Param param.Parameter
}

// Var refers to a lambda parameter.
type Var struct {
	Name string
}

// MemberAccess reads a property, complex-type member or navigation.
type MemberAccess struct {
	Target Handle
	Member string
}

// Binary applies a binary operator.
type Binary struct {
	Op    BinaryOp
	Left  Handle
	Right Handle
}

// Unary applies a unary operator.
type Unary struct {
	Op      UnaryOp
	Operand Handle
}

// FunctionCall invokes a canonical function by name.
type FunctionCall struct {
	Name string
	Args []Handle
}

// Field is one member of a Record.
type Field struct {
	Name  string
	Value Handle
}

// Record constructs an anonymous object.
type Record struct {
	Fields []Field
}

// TypeIs tests whether an entity is of the named type or a subtype.
type TypeIs struct {
	Operand Handle
	Type    string
}

// InList tests membership in a list of constant values.
type InList struct {
	Operand Handle
	Values  []ir.IRValue
}

func (Source) exprNode()       {}
func (Filter) exprNode()       {}
func (Project) exprNode()      {}
func (FlatMap) exprNode()      {}
func (Join) exprNode()         {}
func (GroupBy) exprNode()      {}
func (OrderBy) exprNode()      {}
func (ThenBy) exprNode()       {}
func (Skip) exprNode()         {}
func (Take) exprNode()         {}
func (SetOp) exprNode()        {}
func (Distinct) exprNode()     {}
func (TypeFilter) exprNode()   {}
func (Include) exprNode()      {}
func (Aggregate) exprNode()    {}
func (Quantifier) exprNode()   {}
func (Constant) exprNode()     {}
func (ParameterRef) exprNode() {}
func (Var) exprNode()          {}
func (MemberAccess) exprNode() {}
func (Binary) exprNode()       {}
func (Unary) exprNode()        {}
func (FunctionCall) exprNode() {}
func (Record) exprNode()       {}
func (TypeIs) exprNode()       {}
func (InList) exprNode()       {}

// IsQuery reports whether n is a query operator (produces a sequence or a
// reduction of one) rather than a scalar.
func IsQuery(n Node) bool {
	switch n.(type) {
	case Source, Filter, Project, FlatMap, Join, GroupBy, OrderBy, ThenBy,
		Skip, Take, SetOp, Distinct, TypeFilter, Include, Aggregate, Quantifier:
		return true
	}
	return false
}

// Children returns the handles n refers to, lambda bodies included.
func Children(n Node) []Handle {
	lam := func(hs []Handle, l *Lambda) []Handle {
		if l == nil {
			return hs
		}
		return append(hs, l.Body)
	}

	switch v := n.(type) {
	case Filter:
		return []Handle{v.Source, v.Predicate.Body}
	case Project:
		return []Handle{v.Source, v.Selector.Body}
	case FlatMap:
		return lam([]Handle{v.Source, v.Collection.Body}, v.Result)
	case Join:
		return []Handle{v.Outer, v.Inner, v.OuterKey.Body, v.InnerKey.Body, v.Result.Body}
	case GroupBy:
		return []Handle{v.Source, v.Key.Body}
	case OrderBy:
		return []Handle{v.Source, v.Key.Body}
	case ThenBy:
		return []Handle{v.Source, v.Key.Body}
	case Skip:
		return []Handle{v.Source, v.Count}
	case Take:
		return []Handle{v.Source, v.Count}
	case SetOp:
		return []Handle{v.Left, v.Right}
	case Distinct:
		return []Handle{v.Source}
	case TypeFilter:
		return []Handle{v.Source}
	case Include:
		return []Handle{v.Source}
	case Aggregate:
		return lam(lam([]Handle{v.Source}, v.Selector), v.Predicate)
	case Quantifier:
		return lam([]Handle{v.Source}, v.Predicate)
	case MemberAccess:
		return []Handle{v.Target}
	case Binary:
		return []Handle{v.Left, v.Right}
	case Unary:
		return []Handle{v.Operand}
	case FunctionCall:
		return append([]Handle(nil), v.Args...)
	case Record:
		hs := make([]Handle, len(v.Fields))
		for i, f := range v.Fields {
			hs[i] = f.Value
		}
		return hs
	case TypeIs:
		return []Handle{v.Operand}
	case InList:
		return []Handle{v.Operand}
	}
	return nil
}

// Name returns the operator name of n, used in error messages and logs.
func Name(n Node) string {
	switch v := n.(type) {
	case Source:
		return "Source"
	case Filter:
		return "Filter"
	case Project:
		return "Project"
	case FlatMap:
		return "FlatMap"
	case Join:
		return "Join"
	case GroupBy:
		return "GroupBy"
	case OrderBy:
		return "OrderBy"
	case ThenBy:
		return "ThenBy"
	case Skip:
		return "Skip"
	case Take:
		return "Take"
	case SetOp:
		switch v.Kind {
		case Union:
			return "Union"
		case Concat:
			return "Concat"
		case Intersect:
			return "Intersect"
		case Except:
			return "Except"
		}
		return "SetOp"
	case Distinct:
		return "Distinct"
	case TypeFilter:
		return "OfType"
	case Include:
		return "Include"
	case Aggregate:
		return "Aggregate"
	case Quantifier:
		if v.Kind == All {
			return "All"
		}
		return "Any"
	case Constant:
		return "Constant"
	case ParameterRef:
		return "Parameter"
	case Var:
		return "Var"
	case MemberAccess:
		return "MemberAccess"
	case Binary:
		return "Binary"
	case Unary:
		return "Unary"
	case FunctionCall:
		return "FunctionCall"
	case Record:
		return "Record"
	case TypeIs:
		return "TypeIs"
	case InList:
		return "InList"
	}
	return "Unknown"
}
