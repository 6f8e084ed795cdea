package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/cellgraph/internal/ir"
)

// LoadGraphs loads every .cue file in dir as one CUE instance and compiles
// all graphs it declares.
func LoadGraphs(dir string) ([]ir.GraphSpec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("graphs directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return CompileGraphs(value)
}

// LoadGraphFile compiles a single CUE file and returns the named graph.
func LoadGraphFile(path, name string) (*ir.GraphSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	graphVal := value.LookupPath(cue.MakePath(cue.Str("graph"), cue.Str(name)))
	if !graphVal.Exists() {
		return nil, &CompileError{
			Field:   "graph",
			Message: fmt.Sprintf("graph %q not found in %s", name, path),
		}
	}

	return CompileGraph(graphVal)
}
