package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelections_PositionalLength(t *testing.T) {
	var empty Selections
	pos := empty.Positional(testConfigs)
	require.Len(t, pos, len(testConfigs))
	for _, s := range pos {
		require.Nil(t, s)
	}

	pos = Selections{"public": Single("true")}.Positional(testConfigs)
	require.Nil(t, pos[0])
	require.NotNil(t, pos[2])
}

func TestParseSelection(t *testing.T) {
	cfg := Configuration{
		Key:  "category",
		Type: TypeString,
		Options: []Option{
			{Label: "Guide", Value: strPtr("guide")},
			{Label: "None", Value: nil},
		},
	}

	sel, err := ParseSelection(cfg, "equals", "Guide")
	require.NoError(t, err)
	require.Equal(t, "equals", sel.Operator)
	require.Equal(t, "guide", sel.Options[0].RawValue())

	_, err = ParseSelection(cfg, "", "missing")
	require.Error(t, err)

	_, err = ParseSelection(cfg, "", "guide,other")
	require.Error(t, err)

	_, err = ParseSelection(cfg, "", " , ")
	require.Error(t, err)
}

func TestParseSelection_FreeFormList(t *testing.T) {
	cfg := Configuration{Key: "tag", Type: TypeStringList}

	sel, err := ParseSelection(cfg, "", "a, b")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, Translate(sel, cfg)["tag"].Value)
}

func TestParseConfigurations(t *testing.T) {
	configs, err := ParseConfigurations([]byte(`
filters:
  - key: category
    type: STRING
    label: Category
    options:
      - label: Guide
        value: guide
      - label: Any
        value: null
  - key: year
    type: NUMBER
`))
	require.NoError(t, err)
	require.Len(t, configs, 2)
	require.Equal(t, "category", configs[0].Key)
	require.Nil(t, configs[0].Options[1].Value)
	require.Equal(t, TypeNumber, configs[1].Type)

	_, err = ParseConfigurations([]byte("filters:\n  - key: a\n    type: DATE\n"))
	require.Error(t, err)

	_, err = ParseConfigurations([]byte("filters:\n  - key: a\n    type: STRING\n  - key: a\n    type: NUMBER\n"))
	require.Error(t, err)
}
