package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed ids.
// Version suffix enables future algorithm migration.
const (
	DomainRecompute = "cellgraph/recompute/v1"
	DomainGraph     = "cellgraph/graph/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecomputeID computes the content id of a recompute record. Writing the
// same record twice yields the same id, which the journal uses for
// idempotent inserts.
func RecomputeID(r RecomputeRecord) (string, error) {
	canonical, err := MarshalCanonical(r.Object())
	if err != nil {
		return "", fmt.Errorf("RecomputeID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecompute, canonical), nil
}

// GraphHash computes the content id of a graph definition.
func GraphHash(g GraphSpec) (string, error) {
	canonical, err := MarshalCanonical(g.Object())
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustRecomputeID is RecomputeID that panics on error.
// Records hold only strings, ints and bools, so marshaling cannot fail.
func MustRecomputeID(r RecomputeRecord) string {
	id, err := RecomputeID(r)
	if err != nil {
		panic(err)
	}
	return id
}
