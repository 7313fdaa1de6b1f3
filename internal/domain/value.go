package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindInvalid is the kind of the zero Value. It is never storable.
	KindInvalid Kind = iota
	KindNumber
	KindText
	KindBool
	KindRecord
	KindList
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is an immutable stored value: a number, text, boolean, record
// (mapping of text to Value) or ordered list of Values.
// Containers are copied on construction and on access.
type Value struct {
	kind   Kind
	num    float64
	text   string
	flag   bool
	fields map[string]Value
	items  []Value
}

// Number returns a number Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Text returns a text Value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, flag: b}
}

// Object returns a record Value holding a copy of fields.
func Object(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindRecord, fields: cp}
}

// List returns a list Value holding a copy of items.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds one of the five supported variants.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsText returns the text held by v.
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

// AsRecord returns a copy of the fields held by v.
func (v Value) AsRecord() (map[string]Value, bool) {
	if v.kind != KindRecord {
		return nil, false
	}
	cp := make(map[string]Value, len(v.fields))
	for k, f := range v.fields {
		cp[k] = f
	}
	return cp, true
}

// AsList returns a copy of the items held by v.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp, true
}

// Validate returns ErrUnsupportedValueType if v, or anything nested in it,
// cannot be stored and round-tripped through the journal.
func (v Value) Validate() error {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("%w: non-finite number", ErrUnsupportedValueType)
		}
	case KindText:
		if !utf8.ValidString(v.text) {
			return fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupportedValueType)
		}
	case KindBool:
	case KindRecord:
		for k, f := range v.fields {
			if !utf8.ValidString(k) {
				return fmt.Errorf("%w: record field name is not valid UTF-8", ErrUnsupportedValueType)
			}
			if err := f.Validate(); err != nil {
				return err
			}
		}
	case KindList:
		for _, item := range v.items {
			if err := item.Validate(); err != nil {
				return err
			}
		}
	default:
		return ErrUnsupportedValueType
	}
	return nil
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNumber:
		return a.num == b.num
	case KindText:
		return a.text == b.text
	case KindBool:
		return a.flag == b.flag
	case KindRecord:
		if len(a.fields) != len(b.fields) {
			return false
		}
		for k, af := range a.fields {
			bf, ok := b.fields[k]
			if !ok || !Equal(af, bf) {
				return false
			}
		}
		return true
	case KindList:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Interface returns v as plain Go data: float64, string, bool,
// map[string]any or []any. The zero Value yields nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	case KindBool:
		return v.flag
	case KindRecord:
		m := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			m[k] = f.Interface()
		}
		return m
	case KindList:
		s := make([]any, len(v.items))
		for i, item := range v.items {
			s[i] = item.Interface()
		}
		return s
	default:
		return nil
	}
}

// FromAny converts plain Go data into a Value. It accepts every Go numeric
// type, json.Number, string, bool, map[string]any, []any, map[string]Value,
// []Value and Value. Anything else, including nil, is ErrUnsupportedValueType.
func FromAny(x any) (Value, error) {
	var v Value
	switch t := x.(type) {
	case Value:
		v = t
	case float64:
		v = Number(t)
	case float32:
		v = Number(float64(t))
	case int:
		v = Number(float64(t))
	case int8:
		v = Number(float64(t))
	case int16:
		v = Number(float64(t))
	case int32:
		v = Number(float64(t))
	case int64:
		v = Number(float64(t))
	case uint:
		v = Number(float64(t))
	case uint8:
		v = Number(float64(t))
	case uint16:
		v = Number(float64(t))
	case uint32:
		v = Number(float64(t))
	case uint64:
		v = Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValueType, err)
		}
		v = Number(f)
	case string:
		v = Text(t)
	case bool:
		v = Bool(t)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, f := range t {
			fv, err := FromAny(f)
			if err != nil {
				return Value{}, err
			}
			fields[k] = fv
		}
		v = Value{kind: KindRecord, fields: fields}
	case map[string]Value:
		v = Object(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		v = Value{kind: KindList, items: items}
	case []Value:
		v = List(t...)
	case nil:
		return Value{}, fmt.Errorf("%w: null", ErrUnsupportedValueType)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValueType, x)
	}
	if err := v.Validate(); err != nil {
		return Value{}, err
	}
	return v, nil
}

// MarshalJSON encodes v as plain JSON. HTML characters are not escaped.
func (v Value) MarshalJSON() ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v.Interface()); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes any JSON document except null, which is not a
// supported value anywhere in the tree.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String returns the JSON form of v, for logs and debugging.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<" + v.kind.String() + ">"
	}
	return string(b)
}
