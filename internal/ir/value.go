package ir

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/cockroachdb/apd/v3"
)

// IRValue is a sealed interface representing the values a query can carry:
// literals in expression nodes, parameter values read at execution time,
// and scalar cells of materialized rows.
//
// Only IRNull, IRString, IRInt, IRBool, IRDecimal, IRTime, IRArray and
// IRObject implement it. There is no float type: binary floats are converted
// to IRDecimal at the boundary so that equality and rendering stay exact.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents SQL NULL / a missing value.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a character value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a logical value.
type IRBool bool

func (IRBool) irValue() {}

// IRDecimal represents an exact decimal number (currency and numeric
// columns). The zero value is 0.
type IRDecimal struct {
	d apd.Decimal
}

func (IRDecimal) irValue() {}

// IRTime represents a date or datetime value.
type IRTime time.Time

func (IRTime) irValue() {}

// IRArray represents an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a record: a map of field names to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRDecimal parses a decimal literal such as "12.50".
func NewIRDecimal(s string) (IRDecimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return IRDecimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return IRDecimal{d: *d}, nil
}

// MustDecimal is NewIRDecimal for literals known to be valid.
func MustDecimal(s string) IRDecimal {
	d, err := NewIRDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromFloat converts a binary float to its shortest exact decimal
// representation.
func DecimalFromFloat(f float64) (IRDecimal, error) {
	return NewIRDecimal(strconv.FormatFloat(f, 'f', -1, 64))
}

// DecimalFromInt converts an integer to a decimal.
func DecimalFromInt(n int64) IRDecimal {
	var d apd.Decimal
	d.SetInt64(n)
	return IRDecimal{d: d}
}

// String returns the decimal in plain notation.
func (v IRDecimal) String() string {
	return v.d.Text('f')
}

// Float64 returns the nearest binary float.
func (v IRDecimal) Float64() float64 {
	f, err := v.d.Float64()
	if err != nil {
		return 0
	}
	return f
}

// Cmp compares two decimals numerically (-1, 0, +1).
func (v IRDecimal) Cmp(o IRDecimal) int {
	return v.d.Cmp(&o.d)
}

// Decimal returns a copy of the underlying apd value.
func (v IRDecimal) Decimal() *apd.Decimal {
	var d apd.Decimal
	d.Set(&v.d)
	return &d
}

// MarshalJSON renders the decimal as a JSON number without rounding.
func (v IRDecimal) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// Time returns the time.Time value.
func (v IRTime) Time() time.Time {
	return time.Time(v)
}

// MarshalJSON renders the time as an RFC 3339 string.
func (v IRTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(v).Format(time.RFC3339Nano))
}

// NewIRString creates an IRString value.
func NewIRString(s string) IRString {
	return IRString(s)
}

// NewIRInt creates an IRInt value.
func NewIRInt(n int64) IRInt {
	return IRInt(n)
}

// NewIRBool creates an IRBool value.
func NewIRBool(b bool) IRBool {
	return IRBool(b)
}

// NewIRArray creates an IRArray from values.
func NewIRArray(vals ...IRValue) IRArray {
	return IRArray(vals)
}

// IRPair represents a key-value pair for typed IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// NewIRObjectFromPairs creates an IRObject from typed key-value pairs.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// O is a shorthand for IRPair.
// Example: NewIRObjectFromPairs(O("name", NewIRString("Chai")), O("id", NewIRInt(1)))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// IsNull reports whether v is nil or IRNull.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// FromGo converts a Go value into an IRValue.
//
// Floats become IRDecimal, pointers are dereferenced (nil pointers become
// IRNull), slices become IRArray and string-keyed maps become IRObject.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case float32:
		return DecimalFromFloat(float64(val))
	case float64:
		return DecimalFromFloat(val)
	case apd.Decimal:
		var d apd.Decimal
		d.Set(&val)
		return IRDecimal{d: d}, nil
	case *apd.Decimal:
		if val == nil {
			return IRNull{}, nil
		}
		var d apd.Decimal
		d.Set(val)
		return IRDecimal{d: d}, nil
	case time.Time:
		return IRTime(val), nil
	case []byte:
		return IRString(string(val)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		return FromGo(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		arr := make(IRArray, rv.Len())
		for i := range arr {
			elem, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = elem
		}
		return arr, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type: %s", rv.Type().Key())
		}
		obj := make(IRObject, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			elem, err := FromGo(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", iter.Key().String(), err)
			}
			obj[iter.Key().String()] = elem
		}
		return obj, nil
	case reflect.String:
		return IRString(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IRInt(rv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return DecimalFromFloat(rv.Float())
	case reflect.Bool:
		return IRBool(rv.Bool()), nil
	}
	return nil, fmt.Errorf("unsupported Go type for IRValue: %T", v)
}

// Native converts an IRValue to the plain Go value database drivers accept.
// Decimals become their string form; dialects that need binary floats
// convert them explicitly.
func Native(v IRValue) (any, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return nil, nil
	case IRString:
		return string(val), nil
	case IRInt:
		return int64(val), nil
	case IRBool:
		return bool(val), nil
	case IRDecimal:
		return val.String(), nil
	case IRTime:
		return time.Time(val), nil
	case IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}

// Equal reports whether two values are the same. Decimals compare
// numerically, so 1.50 equals 1.5.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case nil, IRNull:
		return IsNull(b)
	case IRDecimal:
		bv, ok := b.(IRDecimal)
		return ok && av.Cmp(bv) == 0
	case IRTime:
		bv, ok := b.(IRTime)
		return ok && time.Time(av).Equal(time.Time(bv))
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !Equal(x, y) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
