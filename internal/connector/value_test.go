package connector

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValueKinds(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		kind Kind
	}{
		{"nil", nil, KindNull},
		{"string", "RANDOM", KindText},
		{"int64", int64(6), KindNumber},
		{"float", 0.1, KindNumber},
		{"bool", true, KindBool},
		{"json number", json.Number("3.5"), KindNumber},
		{"numeric", big.NewRat(1, 4), KindNumber},
		{"date", civil.Date{Year: 2024, Month: 3, Day: 1}, KindText},
		{"string list", []string{"a", "b"}, KindList},
		{"bigquery list", []bigquery.Value{"x", int64(1)}, KindList},
		{"nested", []interface{}{map[string]interface{}{"a": 1.0}}, KindArray},
		{"map", map[string]interface{}{"a": 1.0}, KindObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, ParseValue(tt.in).Kind())
		})
	}
}

func TestValueSplit(t *testing.T) {
	t.Run("text is stringy", func(t *testing.T) {
		s, f := Text("RANDOM").Split()
		assert.Equal(t, bigquery.NullString{StringVal: "RANDOM", Valid: true}, s)
		assert.False(t, f.Valid)
	})

	t.Run("list is joined with dash", func(t *testing.T) {
		s, f := ParseValue([]interface{}{"a", "b", "c"}).Split()
		assert.Equal(t, "a-b-c", s.StringVal)
		assert.True(t, s.Valid)
		assert.False(t, f.Valid)
	})

	t.Run("number is numeric", func(t *testing.T) {
		s, f := ParseValue(int64(6)).Split()
		assert.False(t, s.Valid)
		assert.Equal(t, bigquery.NullFloat64{Float64: 6, Valid: true}, f)
	})

	t.Run("bool is numeric", func(t *testing.T) {
		s, f := Bool(true).Split()
		assert.False(t, s.Valid)
		assert.Equal(t, 1.0, f.Float64)
		assert.True(t, f.Valid)
	})

	t.Run("null leaves both null", func(t *testing.T) {
		s, f := Null().Split()
		assert.False(t, s.Valid)
		assert.False(t, f.Valid)
	})

	t.Run("object is rendered as json text", func(t *testing.T) {
		o, err := DecodeObject([]byte(`{"b":1,"a":"x"}`))
		require.NoError(t, err)
		s, f := ObjectValue(o).Split()
		assert.True(t, s.Valid)
		assert.JSONEq(t, `{"a":"x","b":1}`, s.StringVal)
		assert.False(t, f.Valid)
	})
}

func TestValueFloat(t *testing.T) {
	f, ok := Text(" 1.5 ").Float()
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	_, ok = Text("abc").Float()
	assert.False(t, ok)

	_, ok = Null().Float()
	assert.False(t, ok)
}

func TestDecodeObjectPreservesOrder(t *testing.T) {
	o, err := DecodeObject([]byte(`{"zeta": 1, "alpha": "a", "mid": [1, 2], "nested": {"y": true, "x": null}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid", "nested"}, o.Keys())

	mid, ok := o.Get("mid")
	require.True(t, ok)
	assert.Equal(t, KindList, mid.Kind())
	assert.Equal(t, "1-2", mid.String())

	nested, _ := o.Get("nested")
	assert.Equal(t, []string{"y", "x"}, nested.Object().Keys())

	b, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","mid":["1","2"],"nested":{"x":null,"y":true}}`, string(b))
}

func TestDecodeObjectRejectsNonObject(t *testing.T) {
	_, err := DecodeObject([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestResultGet(t *testing.T) {
	r := &Result{
		Columns: []string{"trial_id", "loss"},
		Rows:    [][]Value{{Number(1), Number(0.5)}},
	}
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, r.ColumnIndex("loss"))
	v := r.Get(0, "loss")
	f, _ := v.Float()
	assert.Equal(t, 0.5, f)
	assert.True(t, r.Get(0, "missing").IsNull())
	assert.True(t, r.Get(3, "loss").IsNull())

	var empty *Result
	assert.Equal(t, 0, empty.Len())
}

func TestPermissionError(t *testing.T) {
	err := NewPermissionError("projects/p", []string{"b", "a", "c"}, []string{"c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	var pe *PermissionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"a", "b"}, pe.Missing)

	assert.NoError(t, NewPermissionError("projects/p", []string{"a"}, []string{"a", "b"}))
}

func TestParseTableRef(t *testing.T) {
	ref, err := ParseTableRef("`proj.ds.registry`")
	require.NoError(t, err)
	assert.Equal(t, TableRef{Project: "proj", Dataset: "ds", TableID: "registry"}, ref)
	assert.Equal(t, "proj.ds.registry", ref.String())

	_, err = ParseTableRef("ds.registry")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestWrapErrorDoesNotDoubleWrap(t *testing.T) {
	err := WrapError("insert", "p.d.t", ErrTableNotFound)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Same(t, err, WrapError("again", "x", err))
	assert.NoError(t, WrapError("noop", "x", nil))
}

func TestDescriptorCreatedUsesUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	// 20:00 UTC on March 1 is already March 2 in Tokyo.
	d := &ModelDescriptor{CreationTime: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC).In(tokyo)}
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, d.Created())
}
