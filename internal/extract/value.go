package extract

import "github.com/tidwall/gjson"

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a leaf (or subtree) of an oracle document. Numbers keep their
// source literal so callers can convert them without a float round trip.
type Value struct {
	kind Kind
	text string
}

func StringValue(s string) Value {
	return Value{kind: KindString, text: s}
}

func NumberValue(literal string) Value {
	return Value{kind: KindNumber, text: literal}
}

func NullValue() Value {
	return Value{kind: KindNull}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Text returns string contents for strings, the literal for numbers and
// booleans, and raw JSON for objects and arrays.
func (v Value) Text() string {
	return v.text
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

func valueFromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Value{kind: KindNull}
	case gjson.True, gjson.False:
		return Value{kind: KindBool, text: r.Raw}
	case gjson.Number:
		return Value{kind: KindNumber, text: r.Raw}
	case gjson.String:
		return Value{kind: KindString, text: r.Str}
	}
	if r.IsArray() {
		return Value{kind: KindArray, text: r.Raw}
	}
	return Value{kind: KindObject, text: r.Raw}
}
