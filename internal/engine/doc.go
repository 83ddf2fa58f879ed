// Package engine is the facade over query translation and execution.
//
// Compile runs the pipeline for one query expression:
//
//  1. plan.Translate builds the logical plan (pure, no I/O)
//  2. capability.Check rejects constructs the target backend cannot run,
//     before any statement text exists
//  3. querysql renders the statement and its parameter slots
//
// The result is a Compiled query that can be executed any number of
// times. Execute reads the current parameter values, hands the text and
// arguments to a Backend, and materializes the rows into ir values using
// the plan's shaping tree.
//
// Failures are *plan.Error values. Every failure aborts the whole query:
// there is no partial result, no retry and no silent rewrite of an
// unsupported construct.
//
// An Engine holds no mutable state after New; compiled queries may be
// executed concurrently. Parameters read caller-owned values, and
// synchronizing those is the caller's business.
package engine
