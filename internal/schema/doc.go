// Package schema is the metadata provider for translation: entity sets,
// their table and column mapping, navigations between them and the type
// hierarchies stored in a single table.
//
// Schemas are written in CUE and compiled with Compile, CompileBytes or
// Load. Errors carry CUE source positions (CompileError).
package schema
