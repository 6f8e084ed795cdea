package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const pricingCUE = `package graphs

graph: pricing: {
	inputs: [
		{name: "price", value: 120},
		{name: "qty", value: 3},
	]
	computes: [
		{name: "subtotal", deps: ["price", "qty"], formula: "mul"},
		{name: "discounted", deps: ["subtotal"], formula: "js: args[0] * 9 / 10"},
	]
}
`

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

// writeGraphDir writes files (name -> CUE source) into a fresh directory.
func writeGraphDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

// decodeData decodes a JSON CLIResponse and its payload into data.
func decodeData(t *testing.T, out string, data any) CLIResponse {
	t.Helper()

	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.CLIResponse
}
