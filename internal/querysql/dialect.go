package querysql

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/vfpquery/internal/ir"
)

// Paging is how a dialect limits and skips rows.
type Paging int

const (
	// PagingLimit writes LIMIT n OFFSET m after ORDER BY.
	PagingLimit Paging = iota
	// PagingTop writes TOP n after SELECT and has no OFFSET. Skip is
	// emulated by excluding the first rows by row key.
	PagingTop
)

// Dialect holds the rendering rules of one SQL dialect. Dialects are
// immutable and safe for concurrent use.
type Dialect struct {
	Name   string
	Paging Paging

	// OffsetOnlyLimit is the LIMIT written when a block skips rows
	// without taking a count. Empty means OFFSET may stand alone.
	OffsetOnlyLimit string

	// OrderByPosition: ORDER BY keys that are projected are written as
	// column positions.
	OrderByPosition bool

	// ParenSetOperands: operands of set operators may be parenthesized.
	ParenSetOperands bool

	// StringEq is the operator for string equality.
	StringEq string

	// Concat is the infix string concatenation operator. Empty means
	// CONCAT(a, b).
	Concat string

	True, False string

	// Functions maps canonical function names to templates whose {i}
	// markers are replaced by the i-th argument.
	Functions map[string]string

	quoteIdent  func(string) string
	placeholder func(n int) string
	quoteString func(string) (string, bool)
	timeLiteral func(time.Time) string
	bindDecimal func(ir.IRDecimal) any
	bindTime    func(time.Time) any
}

// Ident quotes an identifier unless it is a plain lower-case word, which
// every dialect reads the same way quoted or not.
func (d *Dialect) Ident(name string) string {
	if d.quoteIdent == nil || !needsQuote(name) {
		return name
	}
	return d.quoteIdent(name)
}

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var reserved = map[string]bool{
	"all": true, "and": true, "as": true, "asc": true, "by": true, "case": true,
	"check": true, "default": true, "desc": true, "distinct": true, "else": true,
	"end": true, "from": true, "group": true, "having": true, "in": true,
	"index": true, "inner": true, "is": true, "join": true, "key": true,
	"left": true, "limit": true, "not": true, "null": true, "offset": true,
	"on": true, "or": true, "order": true, "select": true, "table": true,
	"then": true, "top": true, "union": true, "user": true, "value": true,
	"values": true, "when": true, "where": true,
}

func needsQuote(name string) bool {
	return !plainIdent.MatchString(name) || reserved[name]
}

// Placeholder returns the marker for the n-th parameter, counting from 1.
func (d *Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

// Literal writes v inline. It reports false when v has no literal form in
// the dialect and must be sent as a parameter.
func (d *Dialect) Literal(v ir.IRValue) (string, bool) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return "NULL", true
	case ir.IRString:
		return d.quoteString(string(val))
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10), true
	case ir.IRBool:
		if val {
			return d.True, true
		}
		return d.False, true
	case ir.IRDecimal:
		return val.String(), true
	case ir.IRTime:
		return d.timeLiteral(val.Time()), true
	}
	return "", false
}

// Bind converts a parameter value to what the driver expects.
func (d *Dialect) Bind(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRDecimal:
		if d.bindDecimal != nil {
			return d.bindDecimal(val), nil
		}
	case ir.IRTime:
		if d.bindTime != nil {
			return d.bindTime(val.Time()), nil
		}
	}
	return ir.Native(v)
}

const sqlTimeLayout = "2006-01-02 15:04:05"

func quoteSingle(s string) (string, bool) {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'", true
}

func quoteDouble(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteFox picks a delimiter that does not occur in s. FoxPro strings
// have no escape sequences.
func quoteFox(s string) (string, bool) {
	for _, delim := range [][2]string{{"'", "'"}, {`"`, `"`}, {"[", "]"}} {
		if !strings.Contains(s, delim[0]) && !strings.Contains(s, delim[1]) {
			return delim[0] + s + delim[1], true
		}
	}
	return "", false
}

func question(int) string { return "?" }

func decimalFloat(d ir.IRDecimal) any { return d.Float64() }

var dialects = map[string]*Dialect{
	"vfp": {
		Name:            "vfp",
		Paging:          PagingTop,
		OrderByPosition: true,
		StringEq:        "==",
		Concat:          "+",
		True:            ".T.",
		False:           ".F.",
		Functions:       vfpFunctions,
		placeholder:     question,
		quoteString:     quoteFox,
		timeLiteral: func(t time.Time) string {
			return "{^" + t.Format(sqlTimeLayout) + "}"
		},
		bindDecimal: decimalFloat,
	},
	"sqlite": {
		Name:            "sqlite",
		Paging:          PagingLimit,
		OffsetOnlyLimit: "-1",
		StringEq:        "=",
		Concat:          "||",
		True:            "1",
		False:           "0",
		Functions:       sqliteFunctions,
		quoteIdent:      quoteDouble,
		placeholder:     question,
		quoteString:     quoteSingle,
		timeLiteral: func(t time.Time) string {
			return "'" + t.Format(sqlTimeLayout) + "'"
		},
		bindDecimal: decimalFloat,
		bindTime: func(t time.Time) any {
			return t.Format(sqlTimeLayout)
		},
	},
	"postgres": {
		Name:             "postgres",
		Paging:           PagingLimit,
		ParenSetOperands: true,
		StringEq:         "=",
		Concat:           "||",
		True:             "TRUE",
		False:            "FALSE",
		Functions:        postgresFunctions,
		quoteIdent:       quoteDouble,
		placeholder:      func(n int) string { return "$" + strconv.Itoa(n) },
		quoteString:      quoteSingle,
		timeLiteral: func(t time.Time) string {
			return "TIMESTAMP '" + t.Format(sqlTimeLayout) + "'"
		},
	},
	"mysql": {
		Name:             "mysql",
		Paging:           PagingLimit,
		OffsetOnlyLimit:  "18446744073709551615",
		ParenSetOperands: true,
		StringEq:         "=",
		True:             "TRUE",
		False:            "FALSE",
		Functions:        mysqlFunctions,
		quoteIdent: func(s string) string {
			return "`" + strings.ReplaceAll(s, "`", "``") + "`"
		},
		placeholder: question,
		quoteString: func(s string) (string, bool) {
			s = strings.ReplaceAll(s, `\`, `\\`)
			return quoteSingle(s)
		},
		timeLiteral: func(t time.Time) string {
			return "TIMESTAMP '" + t.Format(sqlTimeLayout) + "'"
		},
	},
}

// LookupDialect returns the named dialect.
func LookupDialect(name string) (*Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (known: %s)", name, strings.Join(DialectNames(), ", "))
	}
	return d, nil
}

// DialectNames lists the known dialects in sorted order.
func DialectNames() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
