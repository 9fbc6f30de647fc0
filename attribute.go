package spanz

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies which scalar a Value holds.
type ValueKind int

const (
	// KindInvalid is the zero Value.
	KindInvalid ValueKind = iota
	// KindString is a string Value.
	KindString
	// KindInt64 is an int64 Value.
	KindInt64
	// KindFloat64 is a float64 Value.
	KindFloat64
	// KindBool is a bool Value.
	KindBool
)

// Value is a tagged-union scalar attribute value.
// The zero Value has KindInvalid and renders as an empty string.
type Value struct {
	str  string
	num  uint64
	kind ValueKind
}

// Attribute is a key/value pair attached to spans and events.
type Attribute struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: StringValue(value)}
}

// Int creates an int64 attribute from an int.
func Int(key string, value int) Attribute {
	return Int64(key, int64(value))
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: Int64Value(value)}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: Float64Value(value)}
}

// Bool creates a bool attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: BoolValue(value)}
}

// StringValue wraps a string in a Value.
func StringValue(v string) Value {
	return Value{kind: KindString, str: v}
}

// Int64Value wraps an int64 in a Value.
func Int64Value(v int64) Value {
	return Value{kind: KindInt64, num: uint64(v)}
}

// Float64Value wraps a float64 in a Value.
func Float64Value(v float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(v)}
}

// BoolValue wraps a bool in a Value.
func BoolValue(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// Kind returns which scalar this Value holds.
func (v Value) Kind() ValueKind {
	return v.kind
}

// AsString returns the string payload. Only meaningful for KindString.
func (v Value) AsString() string {
	return v.str
}

// AsInt64 returns the int64 payload. Only meaningful for KindInt64.
func (v Value) AsInt64() int64 {
	return int64(v.num)
}

// AsFloat64 returns the float64 payload. Only meaningful for KindFloat64.
func (v Value) AsFloat64() float64 {
	return math.Float64frombits(v.num)
}

// AsBool returns the bool payload. Only meaningful for KindBool.
func (v Value) AsBool() bool {
	return v.num != 0
}

// Emit renders the Value as a string, whatever its kind.
func (v Value) Emit() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return strconv.FormatInt(v.AsInt64(), 10)
	case KindFloat64:
		return strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	default:
		return ""
	}
}

// MarshalJSON renders the underlying scalar rather than the union fields.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return []byte(strconv.Quote(v.str)), nil
	case KindInt64:
		return []byte(strconv.FormatInt(v.AsInt64(), 10)), nil
	case KindFloat64:
		return []byte(strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.AsBool())), nil
	default:
		return []byte("null"), nil
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%s)", v.kindName(), v.Emit())
}

func (v Value) kindName() string {
	switch v.kind {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}
