package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cellgraph/internal/ir"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ReadGraph returns the graph stored under hash.
func (s *Store) ReadGraph(ctx context.Context, hash string) (ir.GraphSpec, error) {
	var spec string
	err := s.db.QueryRowContext(ctx, `
		SELECT spec FROM graphs WHERE hash = ?
	`, hash).Scan(&spec)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.GraphSpec{}, fmt.Errorf("graph %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return ir.GraphSpec{}, fmt.Errorf("read graph: %w", err)
	}
	return unmarshalGraph(spec)
}

// ReadPasses returns every pass ordered by seq.
//
// Returns an empty slice (not nil) if the journal has no passes.
func (s *Store) ReadPasses(ctx context.Context) ([]ir.PassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, origin, seq, steps, graph_hash
		FROM passes
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []ir.PassRecord{}
	for rows.Next() {
		var p ir.PassRecord
		if err := rows.Scan(&p.ID, &p.Origin, &p.Seq, &p.Steps, &p.GraphHash); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}

	return passes, nil
}

// ReadPass returns one pass by id.
func (s *Store) ReadPass(ctx context.Context, id string) (ir.PassRecord, error) {
	var p ir.PassRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, origin, seq, steps, graph_hash
		FROM passes WHERE id = ?
	`, id).Scan(&p.ID, &p.Origin, &p.Seq, &p.Steps, &p.GraphHash)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.PassRecord{}, fmt.Errorf("pass %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.PassRecord{}, fmt.Errorf("read pass: %w", err)
	}
	return p, nil
}

// ReadRecomputes returns the recomputations of one pass ordered by seq.
//
// Returns an empty slice (not nil) if the pass recomputed nothing.
func (s *Store) ReadRecomputes(ctx context.Context, passID string) ([]ir.RecomputeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pass_id, seq, cell, value, resolved, changed
		FROM recomputes
		WHERE pass_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("query recomputes: %w", err)
	}
	defer rows.Close()

	return scanRecomputes(rows)
}

// ReadCellHistory returns every recomputation of one cell across the passes
// of one graph. Cell names are only unique within a graph.
func (s *Store) ReadCellHistory(ctx context.Context, graphHash, cell string) ([]ir.RecomputeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.pass_id, r.seq, r.cell, r.value, r.resolved, r.changed
		FROM recomputes r
		JOIN passes p ON p.id = r.pass_id
		WHERE p.graph_hash = ? AND r.cell = ?
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`, graphHash, cell)
	if err != nil {
		return nil, fmt.Errorf("query cell history: %w", err)
	}
	defer rows.Close()

	return scanRecomputes(rows)
}

// GraphHashes returns the hashes of every journaled version of a graph
// that has at least one pass, ordered by first pass.
func (s *Store) GraphHashes(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.graph_hash
		FROM passes p
		JOIN graphs g ON g.hash = p.graph_hash
		WHERE g.name = ?
		GROUP BY p.graph_hash
		ORDER BY MIN(p.seq) ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query graph hashes: %w", err)
	}
	defer rows.Close()

	hashes := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan graph hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate graph hashes: %w", err)
	}
	return hashes, nil
}

// CountRecomputes returns the number of recomputations in a pass.
func (s *Store) CountRecomputes(ctx context.Context, passID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM recomputes WHERE pass_id = ?
	`, passID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recomputes: %w", err)
	}
	return n, nil
}

// LastSeq returns the highest sequence number in the journal, or 0 when it
// is empty. A reactor writing to an existing journal starts its clock here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM passes
			UNION ALL
			SELECT seq FROM recomputes
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func scanRecomputes(rows *sql.Rows) ([]ir.RecomputeRecord, error) {
	out := []ir.RecomputeRecord{}
	for rows.Next() {
		var r ir.RecomputeRecord
		if err := rows.Scan(&r.ID, &r.PassID, &r.Seq, &r.Cell, &r.Value, &r.Resolved, &r.Changed); err != nil {
			return nil, fmt.Errorf("scan recompute: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recomputes: %w", err)
	}
	return out, nil
}
