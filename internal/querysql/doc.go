// Package querysql renders logical plans as SQL text for a dialect.
//
// Supported dialects: vfp (Visual FoxPro), sqlite, postgres, mysql. The
// vfp dialect has no OFFSET and no quoted identifiers; Skip is emulated
// with TOP and a NOT IN subquery over a single-column row key, logical
// constants are .T. and .F., and dates are written {^yyyy-mm-dd hh:mm:ss}.
//
// Rendering is deterministic: a plan always produces the same text. The
// emitter never reads parameter values. Statement.Args does, at
// execution time.
package querysql
