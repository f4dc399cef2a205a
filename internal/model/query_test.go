package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryEffective(t *testing.T) {
	q := &Query{Text: "what about paris"}
	assert.Equal(t, "what about paris", q.Effective())

	q.Decontextualized = "hotels in paris"
	assert.Equal(t, "hotels in paris", q.Effective())
}

func TestParamsDefaults(t *testing.T) {
	q := &Query{Text: "x"}

	s, err := q.StringParam("mode", "relevance")
	require.NoError(t, err)
	assert.Equal(t, "relevance", s)

	n, err := q.IntParam("limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	b, err := q.BoolParam("streaming", true)
	require.NoError(t, err)
	assert.True(t, b)

	l, err := q.ListParam("sites", []string{"a.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com"}, l)
}

func TestParamsWrongTypeIsConfigurationError(t *testing.T) {
	q := &Query{Text: "x", Params: map[string]any{
		"limit":   "ten",
		"mode":    42,
		"sites":   []any{"a.com", 7},
		"verbose": "yes",
	}}

	for _, call := range []func() error{
		func() error { _, err := q.IntParam("limit", 20); return err },
		func() error { _, err := q.StringParam("mode", ""); return err },
		func() error { _, err := q.ListParam("sites", nil); return err },
		func() error { _, err := q.BoolParam("verbose", false); return err },
	} {
		err := call()
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	}
}

func TestIntParamAcceptsJSONNumbers(t *testing.T) {
	// JSON decoding delivers numbers as float64.
	var q Query
	require.NoError(t, json.Unmarshal([]byte(`{"text":"x","params":{"limit":15,"threshold":0.5}}`), &q))

	n, err := q.IntParam("limit", 0)
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	_, err = q.IntParam("threshold", 0)
	assert.Error(t, err)

	f, err := q.FloatParam("threshold", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)
}
