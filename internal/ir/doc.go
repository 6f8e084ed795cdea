// Package ir provides the canonical value and record types shared by the
// journal, the harness and the graph compiler.
//
// ir imports nothing internal. Key constraints:
//   - NO float types: cell values in traces are int64
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - Content ids are SHA-256 over RFC 8785 canonical JSON with a domain prefix
package ir
