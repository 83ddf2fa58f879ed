package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/schema"
)

// decode converts a driver value to the ir value of a column type. Drivers
// disagree on representations: SQLite hands back decimals as float64 and
// datetimes as text, MySQL returns text as bytes, FoxPro booleans may
// arrive as integers.
func decode(raw any, t schema.ColumnType) (ir.IRValue, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil {
		return ir.IRNull{}, nil
	}

	switch t {
	case schema.TypeString, schema.TypeMemo:
		switch v := raw.(type) {
		case string:
			return ir.IRString(v), nil
		case int64:
			return ir.IRString(strconv.FormatInt(v, 10)), nil
		}

	case schema.TypeInt:
		switch v := raw.(type) {
		case int64:
			return ir.IRInt(v), nil
		case float64:
			if v == float64(int64(v)) {
				return ir.IRInt(int64(v)), nil
			}
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("decode int: %w", err)
			}
			return ir.IRInt(n), nil
		}

	case schema.TypeBool:
		switch v := raw.(type) {
		case bool:
			return ir.IRBool(v), nil
		case int64:
			return ir.IRBool(v != 0), nil
		case string:
			switch strings.ToUpper(strings.TrimSpace(v)) {
			case "1", "T", "TRUE", "Y", ".T.":
				return ir.IRBool(true), nil
			case "0", "F", "FALSE", "N", ".F.":
				return ir.IRBool(false), nil
			}
		}

	case schema.TypeDecimal:
		switch v := raw.(type) {
		case float64:
			return ir.DecimalFromFloat(v)
		case int64:
			return ir.DecimalFromInt(v), nil
		case string:
			return ir.NewIRDecimal(strings.TrimSpace(v))
		}

	case schema.TypeDateTime:
		switch v := raw.(type) {
		case time.Time:
			return ir.IRTime(v), nil
		case string:
			ts, err := dateparse.ParseIn(strings.TrimSpace(v), time.UTC)
			if err != nil {
				return nil, fmt.Errorf("decode datetime: %w", err)
			}
			return ir.IRTime(ts), nil
		}

	case "":
		return ir.FromGo(raw)
	}
	return nil, fmt.Errorf("cannot decode %T as %s", raw, t)
}
