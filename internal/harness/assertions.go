package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/vfpquery/internal/ir"
)

// AssertionError is returned when an expectation fails. It carries the
// statement involved so a failure can be diagnosed from the message alone.
type AssertionError struct {
	Type      string // what was checked: "compile", "count", "rows", "value", "error"
	Expected  string
	Actual    string
	Statement string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Statement != "" {
		fmt.Fprintf(&buf, "  Statement: %s\n", e.Statement)
	}
	return buf.String()
}

// assertCompile checks the rendering for one dialect against its
// expectation.
func assertCompile(exp DialectExpect, r Rendered) error {
	switch {
	case exp.Error == "" && r.Error != "":
		return &AssertionError{
			Type:     "compile",
			Expected: fmt.Sprintf("%s compiles", r.Dialect),
			Actual:   fmt.Sprintf("%s: %s", r.Error, r.Message),
		}
	case exp.Error != "" && r.Error == "":
		return &AssertionError{
			Type:      "compile",
			Expected:  fmt.Sprintf("%s fails with %s", r.Dialect, exp.Error),
			Actual:    "compiled",
			Statement: r.Text,
		}
	case exp.Error != r.Error:
		return &AssertionError{
			Type:     "compile",
			Expected: fmt.Sprintf("%s fails with %s", r.Dialect, exp.Error),
			Actual:   fmt.Sprintf("%s: %s", r.Error, r.Message),
		}
	}
	return nil
}

// assertRun checks one run outcome. Every failed field is reported.
func assertRun(exp Expect, o Outcome, statement string) []error {
	if exp.Error != "" || o.Error != "" {
		if exp.Error != o.Error {
			actual := "succeeded"
			if o.Error != "" {
				actual = fmt.Sprintf("%s: %s", o.Error, o.Message)
			}
			return []error{&AssertionError{
				Type:      "error",
				Expected:  orDefault(exp.Error, "success"),
				Actual:    actual,
				Statement: statement,
			}}
		}
		return nil
	}

	var errs []error
	items, isSeq := o.Value.(ir.IRArray)

	if exp.Count != nil {
		if !isSeq || len(items) != *exp.Count {
			errs = append(errs, &AssertionError{
				Type:      "count",
				Expected:  fmt.Sprintf("%d elements", *exp.Count),
				Actual:    describeCount(o.Value),
				Statement: statement,
			})
		}
	}

	if exp.Rows != nil {
		switch {
		case !isSeq:
			errs = append(errs, &AssertionError{
				Type:      "rows",
				Expected:  fmt.Sprintf("%d elements", len(exp.Rows)),
				Actual:    describeCount(o.Value),
				Statement: statement,
			})
		case len(items) != len(exp.Rows):
			errs = append(errs, &AssertionError{
				Type:      "rows",
				Expected:  fmt.Sprintf("%d elements", len(exp.Rows)),
				Actual:    fmt.Sprintf("%d elements", len(items)),
				Statement: statement,
			})
		default:
			for i, want := range exp.Rows {
				if !valuesMatch(want, items[i]) {
					errs = append(errs, &AssertionError{
						Type:      "rows",
						Expected:  fmt.Sprintf("element %d = %v", i, want),
						Actual:    fmt.Sprintf("element %d = %s", i, render(items[i])),
						Statement: statement,
					})
				}
			}
		}
	}

	if exp.Value != nil && !valuesMatch(exp.Value, o.Value) {
		errs = append(errs, &AssertionError{
			Type:      "value",
			Expected:  fmt.Sprintf("%v", exp.Value),
			Actual:    render(o.Value),
			Statement: statement,
		})
	}
	return errs
}

// valuesMatch compares a value decoded from YAML with a materialized one.
// Numbers compare by value whatever their representation, strings match
// datetimes they parse to, and objects match on the listed fields only.
func valuesMatch(want any, got ir.IRValue) bool {
	switch w := want.(type) {
	case nil:
		return ir.IsNull(got)
	case map[string]any:
		obj, ok := got.(ir.IRObject)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, ok := obj[k]
			if !ok || !valuesMatch(wv, gv) {
				return false
			}
		}
		return true
	case []any:
		arr, ok := got.(ir.IRArray)
		if !ok || len(arr) != len(w) {
			return false
		}
		for i := range w {
			if !valuesMatch(w[i], arr[i]) {
				return false
			}
		}
		return true
	case bool:
		return ir.Equal(ir.IRBool(w), got)
	case time.Time:
		return ir.Equal(ir.IRTime(w), got)
	case string:
		if t, ok := got.(ir.IRTime); ok {
			parsed, err := parseDate(w)
			return err == nil && ir.Equal(ir.IRTime(parsed), t)
		}
		return ir.Equal(ir.IRString(w), got)
	}

	wv, err := ir.FromGo(want)
	if err != nil {
		return false
	}
	wd, ok := asDecimal(wv)
	if !ok {
		return ir.Equal(wv, got)
	}
	gd, ok := asDecimal(got)
	return ok && wd.Cmp(gd) == 0
}

func asDecimal(v ir.IRValue) (ir.IRDecimal, bool) {
	switch n := v.(type) {
	case ir.IRInt:
		return ir.DecimalFromInt(int64(n)), true
	case ir.IRDecimal:
		return n, true
	}
	return ir.IRDecimal{}, false
}

func describeCount(v ir.IRValue) string {
	if arr, ok := v.(ir.IRArray); ok {
		return fmt.Sprintf("%d elements", len(arr))
	}
	return fmt.Sprintf("non-sequence result %s", render(v))
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
