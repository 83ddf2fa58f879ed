// Package plan turns an expression node graph into a logical plan.
//
// A Plan is a tree of Query blocks. Each block is an ordered list of
// stages in SQL clause order:
//
//	Source, Join*, Filter*, GroupBy?, Project, Distinct?, OrderKey*, Skip?, Take?
//
// or a single SetOp stage. Derived tables (Source.Sub, Join.Sub) and
// subqueries (Exists, Subquery) nest further blocks.
//
// Translation is a pure function of the node graph and the schema. It
// reads no parameter values: ParamRef scalars keep the live reference and
// the emitter turns them into positional placeholders.
//
// ORDERING:
//
// An ordering established by OrderBy/ThenBy survives Filter, Project,
// Skip and Take, including across the derived tables the translator
// introduces when an operator cannot share a SELECT block with the
// operators before it. Distinct, set operations and GroupBy discard it.
// Paging without any ordering orders by the row key so results are
// deterministic.
//
// SHAPING:
//
// Plan.Shape describes how one result row (or a run of rows, when nested
// collections or Include spans are joined in) becomes a value: which
// columns hold scalars, which form entities and records, and which
// identify the elements of nested collections.
package plan
