package literal

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseEmptyIsAbsent(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t", "undefined", "  undefined "} {
		value, ok := Parse(raw)
		if !ok || !value.IsAbsent() {
			t.Fatalf("Parse(%q) = %#v, %v; want absent", raw, value, ok)
		}
	}
}

func TestParseScalars(t *testing.T) {
	tests := []struct {
		raw  string
		kind Kind
		want any
	}{
		{raw: `"tenant-42"`, kind: String, want: "tenant-42"},
		{raw: `'tenant-42'`, kind: String, want: "tenant-42"},
		{raw: `'it\'s'`, kind: String, want: "it's"},
		{raw: `'say "hi"'`, kind: String, want: `say "hi"`},
		{raw: `123`, kind: Number, want: json.Number("123")},
		{raw: ` -1.5e2 `, kind: Number, want: json.Number("-150")},
		{raw: `0.25`, kind: Number, want: json.Number("0.25")},
		{raw: `true`, kind: Bool, want: true},
		{raw: `false`, kind: Bool, want: false},
		{raw: `null`, kind: Null, want: nil},
		{raw: `"2024-01-15T10:00:00Z"`, kind: String, want: "2024-01-15T10:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			value, ok := Parse(tt.raw)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.raw)
			}
			if value.Kind() != tt.kind {
				t.Fatalf("Kind() = %v, want %v", value.Kind(), tt.kind)
			}
			if got := value.Interface(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Interface() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseStructures(t *testing.T) {
	value, ok := Parse(`{"a":[1,"x",null],"b":{"c":true}}`)
	if !ok || value.Kind() != Object {
		t.Fatalf("Parse(object) = %#v, %v", value, ok)
	}
	want := map[string]any{
		"a": []any{json.Number("1"), "x", nil},
		"b": map[string]any{"c": true},
	}
	if got := value.Interface(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Interface() = %#v, want %#v", got, want)
	}

	value, ok = Parse(`["a", 2]`)
	if !ok || value.Kind() != Array {
		t.Fatalf("Parse(array) = %#v, %v", value, ok)
	}
}

func TestParseKeepsLargeIntegers(t *testing.T) {
	for _, raw := range []string{"9007199254740993", "12345678901234567", "-9223372036854775808"} {
		value, ok := Parse(raw)
		if !ok {
			t.Fatalf("Parse(%q) failed", raw)
		}
		if value.String() != raw {
			t.Fatalf("String() = %q, want %q", value.String(), raw)
		}
	}

	value, _ := Parse("9007199254740993")
	if got, ok := value.Int64(); !ok || got != 9007199254740993 {
		t.Fatalf("Int64() = %d, %v", got, ok)
	}
	if !value.Equal(IntValue(9007199254740993)) {
		t.Fatalf("Equal(IntValue) = false")
	}
	if value.Equal(IntValue(9007199254740992)) {
		t.Fatalf("Equal(neighbour) = true")
	}

	object, ok := Parse(`{"id":9007199254740993,"ids":[9007199254740995]}`)
	if !ok {
		t.Fatalf("Parse(object) failed")
	}
	if got := object.String(); got != `{"id":9007199254740993,"ids":[9007199254740995]}` {
		t.Fatalf("String() = %s", got)
	}
}

func TestNumberCanonicalForm(t *testing.T) {
	parsed, _ := Parse("1.0")
	if !parsed.Equal(NumberValue(1)) || !parsed.Equal(IntValue(1)) {
		t.Fatalf("Parse(1.0) = %s, want 1", parsed)
	}
	if got, ok := NumberValue(2.5).Float64(); !ok || got != 2.5 {
		t.Fatalf("Float64() = %v, %v", got, ok)
	}
	if _, ok := NumberValue(2.5).Int64(); ok {
		t.Fatalf("Int64() of 2.5 ok")
	}
	if _, ok := StringValue("1").Int64(); ok {
		t.Fatalf("Int64() of string ok")
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{
		`tenant-42`,
		`"unterminated`,
		`123 456`,
		`{"a":1} x`,
		`{"a":}`,
		`'dangling\`,
		`'a'b'`,
		`1e400`,
		`[1,2`,
	} {
		value, ok := Parse(raw)
		if ok || !value.IsAbsent() {
			t.Fatalf("Parse(%q) = %#v, %v; want rejection", raw, value, ok)
		}
	}
}

func TestParseValueReturnsParseError(t *testing.T) {
	_, err := ParseValue(`nope`)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("ParseValue() error = %v, want *ParseError", err)
	}
	if parseErr.Raw != "nope" {
		t.Fatalf("ParseError.Raw = %q", parseErr.Raw)
	}
}

func TestRoundTripThroughCanonicalSerializer(t *testing.T) {
	values := []Value{
		NullValue(),
		BoolValue(true),
		NumberValue(0),
		NumberValue(2.5),
		NumberValue(1e21),
		IntValue(-42),
		StringValue(""),
		StringValue("tenant-42"),
		StringValue(`quote " and 'apostrophe'`),
	}
	object, err := FromInterface(map[string]any{"id": "x", "n": float64(3), "tags": []any{"a", nil}})
	if err != nil {
		t.Fatalf("FromInterface() error = %v", err)
	}
	values = append(values, object)

	for _, v := range values {
		parsed, ok := Parse(v.String())
		if !ok {
			t.Fatalf("Parse(%q) failed", v.String())
		}
		if !v.Equal(parsed) {
			t.Fatalf("Parse(%q) = %#v, want equal value", v.String(), parsed)
		}
	}

	parsed, ok := Parse(AbsentValue().String())
	if !ok || !parsed.IsAbsent() {
		t.Fatalf("Parse(absent serialization) = %#v, %v", parsed, ok)
	}
}
