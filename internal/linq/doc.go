// Package linq is a method-chained surface for building expression node
// graphs.
//
//	b := linq.New()
//	q := b.From("Products").
//		Where(func(p linq.Expr) linq.Expr { return p.Get("UnitPrice").Gt(b.Param("min", param.NewRef(&min))) }).
//		OrderBy(func(p linq.Expr) linq.Expr { return p.Get("ProductName") }).
//		Select(func(p linq.Expr) linq.Expr { return p.Get("ProductName") })
//
// All nodes of one query live in the Builder's arena. Construction never
// fails midway: the first error (an unconvertible constant, an invalid
// handle) is kept and reported by Err, and nodes added after it are
// ignored.
package linq
