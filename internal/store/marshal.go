package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/cellgraph/internal/ir"
)

// marshalGraph converts a graph to canonical JSON TEXT for storage.
func marshalGraph(g ir.GraphSpec) (string, error) {
	data, err := ir.MarshalCanonical(g.Object())
	if err != nil {
		return "", fmt.Errorf("marshal graph: %w", err)
	}
	return string(data), nil
}

// unmarshalGraph parses canonical JSON TEXT back into a graph.
func unmarshalGraph(data string) (ir.GraphSpec, error) {
	var g ir.GraphSpec
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return ir.GraphSpec{}, fmt.Errorf("unmarshal graph: %w", err)
	}
	if g.Inputs == nil {
		g.Inputs = []ir.InputSpec{}
	}
	if g.Computes == nil {
		g.Computes = []ir.ComputeSpec{}
	}
	for i := range g.Computes {
		if g.Computes[i].Deps == nil {
			g.Computes[i].Deps = []string{}
		}
	}
	return g, nil
}
