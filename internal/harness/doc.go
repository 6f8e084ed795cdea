// Package harness runs YAML scenarios against a cell sheet and records
// what propagation did.
//
// A scenario optionally loads a CUE graph, then applies steps (create an
// input, create a compute, set an input, redefine a compute) and checks
// expected values after each one. Assertions at the end inspect the trace
// of reactor events and the final sheet.
//
// Every run is deterministic: pass ids come from a resettable sequence and
// sequence numbers from a fresh logical clock, so the canonical trace can
// be compared byte-for-byte against a golden file (RunWithGolden).
//
// A run can also mirror its passes into a SQLite journal (WithJournal) for
// inspection with the trace command.
package harness
