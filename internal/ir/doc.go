// Package ir provides the value types shared by every stage of query
// translation: literal constants in expression nodes, parameter values read
// at execution time, and the cells of materialized result rows.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO binary floats. Numeric values are IRInt or IRDecimal (apd) so that
//     rendering and comparison are exact and deterministic.
//   - Object keys iterate in RFC 8785 order (SortedKeys).
//   - MarshalCanonical is the only serialization used for fingerprints.
package ir
