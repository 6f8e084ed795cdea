package ir

// GraphSpec is a named cell graph definition: inputs with initial values
// and compute cells with formulas. Order matters: cells are created in
// declaration order, inputs first.
type GraphSpec struct {
	Name     string        `json:"name"`
	Inputs   []InputSpec   `json:"inputs"`
	Computes []ComputeSpec `json:"computes"`
}

// InputSpec declares an input cell.
type InputSpec struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ComputeSpec declares a compute cell. Deps are cell names; Formula is a
// builtin name or a "js:" expression.
type ComputeSpec struct {
	Name    string   `json:"name"`
	Deps    []string `json:"deps"`
	Formula string   `json:"formula"`
}

// CellNames returns every declared name in creation order.
func (g GraphSpec) CellNames() []string {
	names := make([]string, 0, len(g.Inputs)+len(g.Computes))
	for _, in := range g.Inputs {
		names = append(names, in.Name)
	}
	for _, c := range g.Computes {
		names = append(names, c.Name)
	}
	return names
}

// Object returns the canonical form of the graph.
func (g GraphSpec) Object() Object {
	inputs := make(Array, len(g.Inputs))
	for i, in := range g.Inputs {
		inputs[i] = Object{"name": String(in.Name), "value": Int(in.Value)}
	}
	computes := make(Array, len(g.Computes))
	for i, c := range g.Computes {
		computes[i] = Object{
			"name":    String(c.Name),
			"deps":    Strings(c.Deps),
			"formula": String(c.Formula),
		}
	}
	return Object{
		"name":     String(g.Name),
		"inputs":   inputs,
		"computes": computes,
	}
}
