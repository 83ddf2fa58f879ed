// Package capability checks a logical plan against what a backend can run.
//
// Each backend has a fixed Profile: a verdict per stage kind plus the
// paging restrictions of its dialect. Check walks every block of a plan,
// including derived tables, subqueries and set operands, and stops at the
// first UnsupportedConstruct so that no statement text is ever produced
// for a plan the backend cannot run.
//
// UnsupportedAtRuntime verdicts do not stop the plan. They are reported
// as findings and the statement is sent anyway; the backend decides, and
// a rejection surfaces as a BACKEND_EXECUTION error.
//
// Profiles are immutable after package initialization and may be shared
// by concurrent callers.
package capability
