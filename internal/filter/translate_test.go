package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranslate_NilSelection(t *testing.T) {
	for _, typ := range []Type{TypeString, TypeStringList, TypeNumber, TypeBoolean} {
		require.Nil(t, Translate(nil, Configuration{Key: "k", Type: typ}))
	}
}

func TestTranslate_StringList(t *testing.T) {
	cfg := Configuration{Key: "tag", Type: TypeStringList}

	f := Translate(Multi("a", "b"), cfg)
	require.Equal(t, RetrievalFilter{"tag": {Key: "tag", Value: []string{"a", "b"}}}, f)

	empty := Translate(&Selection{}, cfg)
	require.Equal(t, []string{}, empty["tag"].Value)
	require.True(t, empty.HasValue())
}

func TestTranslate_StringListSkipsNullSentinel(t *testing.T) {
	cfg := Configuration{Key: "tag", Type: TypeStringList}
	sel := &Selection{Options: []Option{{Label: "None"}, Multi("a").Options[0]}}

	f := Translate(sel, cfg)
	require.Equal(t, []string{"a"}, f["tag"].Value)
}

func TestTranslate_StringNullSentinel(t *testing.T) {
	cfg := Configuration{Key: "category", Type: TypeString}

	require.Equal(t, "docs", Translate(Single("docs"), cfg)["category"].Value)

	f := Translate(Null(), cfg)
	require.NotNil(t, f)
	require.Nil(t, f["category"].Value)
	require.False(t, f.HasValue())
}

func TestTranslate_Boolean(t *testing.T) {
	cfg := Configuration{Key: "public", Type: TypeBoolean}

	require.Equal(t, true, Translate(Single("true"), cfg)["public"].Value)
	require.Equal(t, false, Translate(Single("false"), cfg)["public"].Value)
	require.Equal(t, false, Translate(Single("yes"), cfg)["public"].Value)
}

func TestTranslate_Number(t *testing.T) {
	cfg := Configuration{Key: "year", Type: TypeNumber}

	require.Equal(t, float64(2024), Translate(Single("2024"), cfg)["year"].Value)
	require.Equal(t, 1.5, Translate(Single(" 1.5 "), cfg)["year"].Value)

	for _, bad := range []string{"", "abc", "NaN", "Inf", "Infinity", "1e999", "1_000", "0x", "-0x1A", "0xZZ"} {
		f := Translate(Single(bad), cfg)
		require.NotNil(t, f, bad)
		require.Nil(t, f["year"].Value, bad)
	}
}

func TestTranslate_NumberBlankAndPrefixedInput(t *testing.T) {
	cfg := Configuration{Key: "year", Type: TypeNumber}

	require.Equal(t, float64(0), Translate(Single("   "), cfg)["year"].Value)
	require.Equal(t, float64(26), Translate(Single("0x1A"), cfg)["year"].Value)
	require.Equal(t, float64(8), Translate(Single("0o10"), cfg)["year"].Value)
	require.Equal(t, float64(5), Translate(Single("0b101"), cfg)["year"].Value)
	require.Equal(t, float64(1000), Translate(Single("1e3"), cfg)["year"].Value)
	require.Equal(t, 0.5, Translate(Single(".5"), cfg)["year"].Value)
	require.Equal(t, float64(-3), Translate(Single("-3"), cfg)["year"].Value)
}

func TestTranslate_OperatorBecomesTopLevelKey(t *testing.T) {
	cfg := Configuration{Key: "year", Type: TypeNumber}

	f := Translate(Single("2020").WithOperator("greaterThan"), cfg)
	require.Equal(t, "greaterThan", f.Operator())
	require.Equal(t, FilterAttribute{Key: "year", Value: float64(2020)}, f.Attribute())
}

func TestTranslate_MultipleOptionsOnScalarTypeYieldList(t *testing.T) {
	cfg := Configuration{Key: "category", Type: TypeString}

	f := Translate(Multi("a", "b").WithOperator("in"), cfg)
	require.Equal(t, []string{"a", "b"}, f["in"].Value)
}

func TestParseRetrievalFilter_RoundTripsValueShapes(t *testing.T) {
	f, err := ParseRetrievalFilter(`{"in":{"key":"tag","value":["x","y"]}}`)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, f["in"].Value)

	f, err = ParseRetrievalFilter(`{"year":{"key":"year","value":3}}`)
	require.NoError(t, err)
	require.Equal(t, float64(3), f["year"].Value)

	_, err = ParseRetrievalFilter(`{"a":{"key":"a","value":1},"b":{"key":"b","value":2}}`)
	require.Error(t, err)
}

func TestRetrievalFilter_JSONShape(t *testing.T) {
	b, err := json.Marshal(Translate(Null(), Configuration{Key: "k", Type: TypeString}))
	require.NoError(t, err)
	require.JSONEq(t, `{"k":{"key":"k","value":null}}`, string(b))
}
