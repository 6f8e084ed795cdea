package store

import (
	"context"
	"fmt"

	"github.com/roach88/cellgraph/internal/ir"
)

// WriteGraph stores a graph definition under its content hash and returns
// the hash. Writing the same graph twice is a no-op.
func (s *Store) WriteGraph(ctx context.Context, g ir.GraphSpec) (string, error) {
	hash, err := ir.GraphHash(g)
	if err != nil {
		return "", fmt.Errorf("write graph: %w", err)
	}

	spec, err := marshalGraph(g)
	if err != nil {
		return "", fmt.Errorf("write graph: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graphs (hash, name, spec)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, g.Name, spec)
	if err != nil {
		return "", fmt.Errorf("write graph: %w", err)
	}

	return hash, nil
}

// WritePass inserts a pass or updates the step count of an existing one.
// Origin, seq and graph hash of an existing pass are never changed.
func (s *Store) WritePass(ctx context.Context, p ir.PassRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO passes (id, origin, seq, steps, graph_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET steps = excluded.steps
	`, p.ID, p.Origin, p.Seq, p.Steps, p.GraphHash)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	return nil
}

// WriteRecompute inserts a recompute record. An empty ID is filled with
// the record's content id. Uses ON CONFLICT(id) DO NOTHING for idempotency.
//
// The pass referenced by PassID must already be written (foreign key).
func (s *Store) WriteRecompute(ctx context.Context, r ir.RecomputeRecord) error {
	if r.ID == "" {
		id, err := ir.RecomputeID(r)
		if err != nil {
			return fmt.Errorf("write recompute: %w", err)
		}
		r.ID = id
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recomputes (id, pass_id, seq, cell, value, resolved, changed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.PassID, r.Seq, r.Cell, r.Value, r.Resolved, r.Changed)
	if err != nil {
		return fmt.Errorf("write recompute: %w", err)
	}
	return nil
}
