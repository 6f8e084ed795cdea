package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Diamond(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/diamond.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestMarshalTrace_UnresolvedFinal(t *testing.T) {
	result := NewResult()
	result.Final = []CellState{
		{Name: "b", Resolved: false},
		{Name: "a", Value: 2, Resolved: true},
	}
	result.Trace = []TraceEvent{
		{Type: "unresolved", Seq: 1, Pass: "p-1", Cell: "b"},
	}

	data, err := MarshalTrace("t", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"final":{"a":2,"b":"unresolved"},"scenario_name":"t","trace":[{"cell":"b","pass":"p-1","seq":1,"type":"unresolved"}]}`,
		string(data))
}
