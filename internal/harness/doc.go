// Package harness runs query conformance documents.
//
// A document describes one query as a YAML tree, the statement each SQL
// dialect should render for it, and the results of executing it on a
// backend with successive parameter values. Rendered statements are
// compared against golden files.
//
// # Document Format
//
//	name: freight_threshold
//	description: "Freight filter reads its parameter on every run"
//	params:
//	  minFreight: 50
//	query:
//	  from: Orders
//	  ops:
//	    - where: {gt: [{get: Freight}, {param: minFreight}]}
//	    - orderBy: {get: OrderID}
//	    - select: {get: OrderID}
//	dialects:
//	  vfp: {}
//	  sqlite: {}
//	runs:
//	  - expect: {count: 20}
//	  - params: {minFreight: 200}
//	    expect: {count: 5}
//
// An absent dialects section means every dialect must compile. A dialect
// may instead expect an error code (UNSUPPORTED_CONSTRUCT,
// UNSUPPORTED_FUNCTION, TRANSLATION). Runs expect a count, rows, a value
// or an error code; rows are compared in order and objects match on the
// listed fields only.
//
// # Determinism
//
// Query construction, translation and rendering are pure, so the same
// document always yields the same statements. Runs use the execution ID
// generator given to the runner; tests pass a sequence generator.
//
// # Usage
//
//	docs, err := harness.LoadDir("testdata/queries")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r := harness.NewRunner(model, harness.WithBackend(st, "sqlite"))
//	for _, doc := range docs {
//	    result, err := r.Run(ctx, doc)
//	    ...
//	}
//
// Render and Execute serve one-off use: Render returns the statements of a
// document for chosen dialects, Execute compiles and runs it once with
// parameter overrides parsed by ParseParams.
package harness
