package connector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Kind tags the shape of a raw warehouse value.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindList
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a loosely-typed value from the model catalog or a query result,
// classified once at the boundary. Lists hold scalar elements rendered as
// text; arrays hold nested objects or mixed values.
type Value struct {
	kind    Kind
	text    string
	list    []string
	number  float64
	boolean bool
	object  Object
	array   []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Text wraps a string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number wraps a float.
func Number(f float64) Value { return Value{kind: KindNumber, number: f} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// List wraps an ordered list of scalar strings.
func List(items ...string) Value { return Value{kind: KindList, list: items} }

// ArrayValue wraps nested values that are not all scalars.
func ArrayValue(items ...Value) Value { return Value{kind: KindArray, array: items} }

// ObjectValue wraps a nested object.
func ObjectValue(o Object) Value { return Value{kind: KindObject, object: o} }

// ParseValue classifies a raw Go value as produced by encoding/json or by the
// BigQuery row iterator.
func ParseValue(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Text(x.String())
		}
		return Number(f)
	case *big.Rat:
		if x == nil {
			return Null()
		}
		f, _ := x.Float64()
		return Number(f)
	case civil.Date:
		return Text(x.String())
	case civil.DateTime:
		return Text(x.String())
	case civil.Time:
		return Text(x.String())
	case time.Time:
		return Text(x.UTC().Format(time.RFC3339Nano))
	case []string:
		return List(x...)
	case []interface{}:
		return parseSlice(x)
	case []bigquery.Value:
		items := make([]interface{}, len(x))
		for i, e := range x {
			items[i] = e
		}
		return parseSlice(items)
	case map[string]interface{}:
		return ObjectValue(ObjectFromMap(x))
	case map[string]bigquery.Value:
		m := make(map[string]interface{}, len(x))
		for k, e := range x {
			m[k] = e
		}
		return ObjectValue(ObjectFromMap(m))
	case Object:
		return ObjectValue(x)
	default:
		return Text(fmt.Sprint(x))
	}
}

// parseSlice returns a List when every element is scalar, otherwise an Array.
func parseSlice(items []interface{}) Value {
	values := make([]Value, len(items))
	scalar := true
	for i, e := range items {
		values[i] = ParseValue(e)
		switch values[i].kind {
		case KindText, KindNumber, KindBool:
		default:
			scalar = false
		}
	}
	if !scalar {
		return ArrayValue(values...)
	}
	list := make([]string, len(values))
	for i, e := range values {
		list[i] = e.String()
	}
	return List(list...)
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsStringy reports whether the value is stored as text in the registry:
// text, lists, and nested structures.
func (v Value) IsStringy() bool {
	switch v.kind {
	case KindText, KindList, KindObject, KindArray:
		return true
	default:
		return false
	}
}

// IsScalar reports whether the value is a single text, number or bool.
func (v Value) IsScalar() bool {
	return v.kind == KindText || v.kind == KindNumber || v.kind == KindBool
}

// List returns the list elements.
func (v Value) List() []string { return v.list }

// Object returns the nested object (zero Object for other kinds).
func (v Value) Object() Object { return v.object }

// Array returns nested values of an Array.
func (v Value) Array() []Value { return v.array }

// Float coerces the value to float64: numbers as-is, booleans as 0/1, text
// when it parses as a number.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.number, true
	case KindBool:
		if v.boolean {
			return 1, true
		}
		return 0, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders the value as registry text. Lists are joined with "-";
// objects and arrays are rendered as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindText:
		return v.text
	case KindList:
		return strings.Join(v.list, "-")
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	default:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return fmt.Sprint(v.Interface())
		}
		return string(b)
	}
}

// Split applies the string/float rule: stringy values fill the string side,
// numeric values the float side, and null leaves both null.
func (v Value) Split() (bigquery.NullString, bigquery.NullFloat64) {
	if v.IsNull() {
		return bigquery.NullString{}, bigquery.NullFloat64{}
	}
	if v.IsStringy() {
		return bigquery.NullString{StringVal: v.String(), Valid: true}, bigquery.NullFloat64{}
	}
	f, _ := v.Float()
	return bigquery.NullString{}, bigquery.NullFloat64{Float64: f, Valid: true}
}

// Interface returns a plain Go representation for encoders.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindText:
		return v.text
	case KindList:
		return v.list
	case KindNumber:
		return v.number
	case KindBool:
		return v.boolean
	case KindObject:
		return v.object.Map()
	case KindArray:
		out := make([]interface{}, len(v.array))
		for i, e := range v.array {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the plain representation.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Object is an ordered string-keyed collection of values.
type Object struct {
	keys   []string
	values map[string]Value
}

// ObjectFromMap builds an Object with keys in lexical order.
func ObjectFromMap(m map[string]interface{}) Object {
	var o Object
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.Set(k, ParseValue(m[k]))
	}
	return o
}

// Set adds or replaces a key, keeping the original position on replace.
func (o *Object) Set(key string, v Value) {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value for key.
func (o Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (o Object) Keys() []string { return o.keys }

// Len returns the number of keys.
func (o Object) Len() int { return len(o.keys) }

// Map returns a plain map copy.
func (o Object) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(o.keys))
	for _, k := range o.keys {
		m[k] = o.values[k].Interface()
	}
	return m
}

// MarshalJSON encodes the object preserving key order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if v.kind != KindObject {
		return fmt.Errorf("expected JSON object, got %s", v.kind)
	}
	*o = v.object
	return nil
}

// DecodeObject parses a JSON object into an ordered Object.
func DecodeObject(data []byte) (Object, error) {
	var o Object
	err := o.UnmarshalJSON(data)
	return o, err
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var o Object
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				o.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ObjectValue(o), nil
		case '[':
			var items []interface{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return parseSlice(items), nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return ParseValue(tok), nil
	}
}
