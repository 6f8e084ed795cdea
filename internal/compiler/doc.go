// Package compiler loads cell graph definitions written in CUE and turns
// them into ir.GraphSpec values.
//
// A graph file declares one or more graphs under the top-level "graph"
// field. Cells are lists so that declaration order (which fixes handle
// order) survives:
//
//	graph: pricing: {
//		inputs: [
//			{name: "price", value: 120},
//			{name: "qty", value: 3},
//		]
//		computes: [
//			{name: "subtotal", deps: ["price", "qty"], formula: "mul"},
//			{name: "discounted", deps: ["subtotal"], formula: "js: args[0] * 9 / 10"},
//		]
//	}
//
// CompileGraph extracts one graph; ValidateGraph checks names, formulas
// and cycles and returns every problem it finds.
package compiler
