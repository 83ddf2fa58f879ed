// Package expr defines the expression node model: the closed set of query
// operator and scalar nodes a caller composes before translation.
//
// Nodes are plain data. They never render SQL and are never mutated once
// added to an Arena. A node refers to its operands by Handle, the index of
// an earlier node in the same arena, so a sub-expression can be shared by
// any number of downstream nodes without copying and the graph is acyclic
// by construction.
//
// SEALED INTERFACE:
//
// Node is sealed with a marker method. Translators switch over the concrete
// types exhaustively:
//
//	Query operators: Source, Filter, Project, FlatMap, Join, GroupBy,
//	  OrderBy, ThenBy, Skip, Take, SetOp, Distinct, TypeFilter, Include,
//	  Aggregate, Quantifier
//	Scalars: Constant, ParameterRef, Var, MemberAccess, Binary, Unary,
//	  FunctionCall, Record, TypeIs, InList
//
// Lambda operands (predicates, selectors, key selectors) are Lambda values:
// parameter names plus a body handle. Var nodes inside the body refer to
// those names.
package expr
