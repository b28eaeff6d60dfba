package chart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_YAML(t *testing.T) {
	doc, err := ParseDocument([]byte(`
policy: abort_on_first
charts:
  - kind: Bar Graph
    dimensionality: 3D
    x: a
    y: b
    z: a
    color: b
  - kind: table
    rows: 10
`))
	require.NoError(t, err)
	assert.Equal(t, AbortOnFirst, doc.Policy)
	require.Len(t, doc.Charts, 2)
	assert.Equal(t, Request{Kind: KindBar, Dimensionality: Dim3D, X: "a", Y: "b", Z: "a", Color: "b"}, doc.Charts[0])
	assert.Equal(t, Request{Kind: KindTable, Rows: 10}, doc.Charts[1])
}

func TestParseDocument_JSON(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"charts": [{"kind": "pie", "names": "region", "values": "units"}]}`))
	require.NoError(t, err)
	assert.Equal(t, Isolate, doc.Policy)
	assert.Equal(t, Request{Kind: KindPie, Names: "region", Values: "units"}, doc.Charts[0])
}

func TestParseDocument_Errors(t *testing.T) {
	for name, input := range map[string]string{
		"empty":         ``,
		"no charts":     `policy: isolate`,
		"unknown field": "charts:\n  - kind: bar\n    colour: a\n",
		"unknown kind":  "charts:\n  - kind: radar\n",
		"bad policy":    "policy: retry\ncharts:\n  - kind: bar\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument([]byte(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestDocument_MarshalRoundTrip(t *testing.T) {
	in := &Document{Policy: Isolate, Charts: []Request{{Kind: KindLine, X: "a", Y: "b", Height: 500}}}
	data, err := in.Marshal()
	require.NoError(t, err)

	out, err := ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"kind": "scatter", "x": "a", "y": "b", "height": 500}`))
	require.NoError(t, err)
	assert.Equal(t, Request{Kind: KindScatter, X: "a", Y: "b", Height: 500}, req)

	for _, in := range []string{"", "x: a", "kind: bar\nbogus: 1", "kind: histogram"} {
		_, err := ParseRequest([]byte(in))
		assert.True(t, errors.Is(err, ErrConfiguration), "input %q", in)
	}
}
