// Package literal parses the raw text typed into partition-key and parameter
// fields into typed JSON values.
//
// The grammar is JSON plus two conveniences: the bare word `undefined`, which
// yields an absent value, and single-quoted strings. Strings that look like
// dates stay strings. Numbers keep their digits: integers that fit in int64
// stay exact and everything else is held in its shortest float64 form.
package literal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type Kind int

const (
	Absent Kind = iota
	Null
	Bool
	Number
	String
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}

const undefinedKeyword = "undefined"

var errTrailingContent = errors.New("unexpected content after value")

// ParseError reports raw text that is not a valid literal.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid literal %q: %v", e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Value is a parsed literal. The zero Value is absent.
type Value struct {
	kind  Kind
	value any
}

func AbsentValue() Value {
	return Value{}
}

func NullValue() Value {
	return Value{kind: Null}
}

func BoolValue(b bool) Value {
	return Value{kind: Bool, value: b}
}

func NumberValue(f float64) Value {
	return Value{kind: Number, value: numberFromFloat(f)}
}

func IntValue(i int64) Value {
	return Value{kind: Number, value: json.Number(strconv.FormatInt(i, 10))}
}

func StringValue(s string) Value {
	return Value{kind: String, value: s}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsAbsent() bool {
	return v.kind == Absent
}

// Interface returns the decoded tree. Numbers, including those nested in
// objects and arrays, are json.Number.
func (v Value) Interface() any {
	return v.value
}

// Int64 reports the value as an integer when it is a number without a
// fractional part that fits in int64.
func (v Value) Int64() (int64, bool) {
	n, ok := v.value.(json.Number)
	if v.kind != Number || !ok {
		return 0, false
	}
	i, err := n.Int64()
	return i, err == nil
}

func (v Value) Float64() (float64, bool) {
	n, ok := v.value.(json.Number)
	if v.kind != Number || !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && reflect.DeepEqual(v.value, o.value)
}

func (v Value) GoString() string {
	return fmt.Sprintf("literal.%s(%s)", v.kind, v.String())
}

// FromInterface builds a Value from a decoded JSON tree
// (nil, bool, float64, json.Number, string, map[string]any, []any).
func FromInterface(decoded any) (Value, error) {
	normalized, err := normalize(decoded)
	if err != nil {
		return Value{}, err
	}
	switch normalized.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return Value{kind: Bool, value: normalized}, nil
	case json.Number:
		return Value{kind: Number, value: normalized}, nil
	case string:
		return Value{kind: String, value: normalized}, nil
	case map[string]any:
		return Value{kind: Object, value: normalized}, nil
	default:
		return Value{kind: Array, value: normalized}, nil
	}
}

// normalize copies a decoded tree, turning every number into its canonical
// json.Number.
func normalize(decoded any) (any, error) {
	switch typed := decoded.(type) {
	case nil, bool, string:
		return typed, nil
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return nil, fmt.Errorf("number %v is not representable in JSON", typed)
		}
		return numberFromFloat(typed), nil
	case json.Number:
		return canonicalNumber(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", decoded)
	}
}

func canonicalNumber(n json.Number) (json.Number, error) {
	if i, err := n.Int64(); err == nil {
		return json.Number(strconv.FormatInt(i, 10)), nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("number %s is out of range", n)
	}
	return numberFromFloat(f), nil
}

func numberFromFloat(f float64) json.Number {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// String renders the canonical literal text. Absent renders as the empty
// string, which parses back to absent.
func (v Value) String() string {
	if v.kind == Absent {
		return ""
	}
	encoded, err := json.Marshal(v.value)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// MarshalJSON encodes absent as null; callers that need to tell them apart
// check Kind first.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == Absent {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

// Parse reports whether raw is a valid literal. Empty input is valid and
// yields an absent value.
func Parse(raw string) (Value, bool) {
	value, err := ParseValue(raw)
	if err != nil {
		return Value{}, false
	}
	return value, true
}

func ParseValue(raw string) (Value, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == undefinedKeyword {
		return Value{}, nil
	}

	if isSingleQuoted(trimmed) {
		converted, err := singleToDoubleQuoted(trimmed)
		if err != nil {
			return Value{}, &ParseError{Raw: raw, Err: err}
		}
		trimmed = converted
	}

	decoder := json.NewDecoder(strings.NewReader(trimmed))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return Value{}, &ParseError{Raw: raw, Err: err}
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return Value{}, &ParseError{Raw: raw, Err: errTrailingContent}
	}

	value, err := FromInterface(decoded)
	if err != nil {
		return Value{}, &ParseError{Raw: raw, Err: err}
	}
	return value, nil
}

func isSingleQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}

func singleToDoubleQuoted(s string) (string, error) {
	inner := s[1 : len(s)-1]
	var b strings.Builder
	b.Grow(len(inner) + 2)
	b.WriteByte('"')
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '\\':
			if i+1 >= len(inner) {
				return "", fmt.Errorf("dangling escape")
			}
			next := inner[i+1]
			if next == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(next)
			}
			i++
		case c == '\'':
			return "", fmt.Errorf("unescaped quote inside single-quoted string")
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String(), nil
}
