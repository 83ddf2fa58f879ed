package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vfpquery/internal/ir"
)

// Compile builds a Model from a CUE value holding an "entity" struct:
//
//	entity: Orders: {
//		table: "orders"
//		key: ["OrderID"]
//		columns: {
//			OrderID: "int"                                  // column "orderid"
//			Freight: {column: "freight", type: "decimal"}
//		}
//		navigation: Customer: {target: "Customers", from: ["CustomerID"], to: ["CustomerID"]}
//	}
func Compile(v cue.Value) (*Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{
			Field:   "entity",
			Message: "at least one entity is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var entities []*Entity
	for iter.Next() {
		e, err := compileEntity(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	m, err := NewModel(entities...)
	if err != nil {
		return nil, &CompileError{Field: "entity", Message: err.Error(), Pos: entitiesVal.Pos()}
	}
	return m, nil
}

func compileEntity(name string, v cue.Value) (*Entity, error) {
	field := "entity." + name
	e := &Entity{Name: name, Navigations: make(map[string]*Navigation)}

	table, err := requiredString(v, "table", field)
	if err != nil {
		return nil, err
	}
	e.Table = table

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return nil, &CompileError{Field: field + ".key", Message: "key is required", Pos: v.Pos()}
	}
	if e.Key, err = stringList(keyVal); err != nil {
		return nil, err
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{Field: field + ".columns", Message: "columns are required", Pos: v.Pos()}
	}
	colIter, err := colsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for colIter.Next() {
		col, err := compileColumn(field, colIter.Selector().Unquoted(), colIter.Value())
		if err != nil {
			return nil, err
		}
		e.Columns = append(e.Columns, col)
	}

	navVal := v.LookupPath(cue.ParsePath("navigation"))
	if navVal.Exists() {
		navIter, err := navVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for navIter.Next() {
			nav, err := compileNavigation(field, navIter.Selector().Unquoted(), navIter.Value())
			if err != nil {
				return nil, err
			}
			e.Navigations[nav.Name] = nav
		}
	}

	hVal := v.LookupPath(cue.ParsePath("hierarchy"))
	if hVal.Exists() {
		h, err := compileHierarchy(field+".hierarchy", hVal)
		if err != nil {
			return nil, err
		}
		e.Hierarchy = h
	}

	return e, nil
}

// compileColumn accepts either a bare type string, in which case the
// column name is the lower-cased property with dots replaced by
// underscores, or a struct with column and type.
func compileColumn(field, property string, v cue.Value) (*Column, error) {
	col := &Column{
		Property: property,
		Name:     strings.ToLower(strings.ReplaceAll(property, ".", "_")),
	}

	if s, err := v.String(); err == nil {
		col.Type = ColumnType(s)
	} else {
		typ, err := requiredString(v, "type", field+".columns."+property)
		if err != nil {
			return nil, err
		}
		col.Type = ColumnType(typ)
		if nameVal := v.LookupPath(cue.ParsePath("column")); nameVal.Exists() {
			name, err := nameVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			col.Name = name
		}
	}

	if !col.Type.Valid() {
		return nil, &CompileError{
			Field:   field + ".columns." + property,
			Message: fmt.Sprintf("unknown column type %q", col.Type),
			Pos:     v.Pos(),
		}
	}
	return col, nil
}

func compileNavigation(field, name string, v cue.Value) (*Navigation, error) {
	navField := field + ".navigation." + name
	nav := &Navigation{Name: name}

	target, err := requiredString(v, "target", navField)
	if err != nil {
		return nil, err
	}
	nav.Target = target

	for _, part := range []struct {
		label string
		dst   *[]string
	}{{"from", &nav.From}, {"to", &nav.To}} {
		pv := v.LookupPath(cue.ParsePath(part.label))
		if !pv.Exists() {
			return nil, &CompileError{Field: navField + "." + part.label, Message: part.label + " is required", Pos: v.Pos()}
		}
		if *part.dst, err = stringList(pv); err != nil {
			return nil, err
		}
	}

	if manyVal := v.LookupPath(cue.ParsePath("many")); manyVal.Exists() {
		many, err := manyVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		nav.Many = many
	}
	return nav, nil
}

func compileHierarchy(field string, v cue.Value) (*Hierarchy, error) {
	h := &Hierarchy{Types: make(map[string]*TypeDef)}

	var err error
	if h.Column, err = requiredString(v, "column", field); err != nil {
		return nil, err
	}
	if h.Root, err = requiredString(v, "root", field); err != nil {
		return nil, err
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CompileError{Field: field + ".types", Message: "types are required", Pos: v.Pos()}
	}
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		tv := iter.Value()
		td := &TypeDef{Name: name}
		if pv := tv.LookupPath(cue.ParsePath("parent")); pv.Exists() {
			if td.Parent, err = pv.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if vv := tv.LookupPath(cue.ParsePath("value")); vv.Exists() {
			if td.Value, err = discriminatorValue(field+".types."+name, vv); err != nil {
				return nil, err
			}
		}
		h.Types[name] = td
	}
	return h, nil
}

func discriminatorValue(field string, v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	default:
		return nil, &CompileError{
			Field:   field + ".value",
			Message: fmt.Sprintf("discriminator value must be a string, int or bool, got %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

func requiredString(v cue.Value, label, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(label))
	if !sv.Exists() {
		return "", &CompileError{
			Field:   field + "." + label,
			Message: label + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a schema error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
