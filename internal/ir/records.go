package ir

// PassRecord is one propagation pass as written to the journal.
type PassRecord struct {
	ID     string `json:"id"`
	Origin string `json:"origin"` // cell name (or handle) whose write started the pass
	Seq    int64  `json:"seq"`
	Steps  int    `json:"steps"`

	// GraphHash links the pass to a journaled graph; empty for ad hoc
	// reactors.
	GraphHash string `json:"graph_hash,omitempty"`
}

// RecomputeRecord is one recomputation inside a pass.
//
// Resolved is false when the cell was left unchanged because a dependency
// had no value; Value is then 0 and meaningless.
type RecomputeRecord struct {
	ID       string `json:"id"` // content id, see RecomputeID
	PassID   string `json:"pass_id"`
	Seq      int64  `json:"seq"`
	Cell     string `json:"cell"`
	Value    int64  `json:"value"`
	Resolved bool   `json:"resolved"`
	Changed  bool   `json:"changed"`
}

// Object returns the canonical form used for traces and hashing.
// The ID field is excluded: it is derived from this object.
func (r RecomputeRecord) Object() Object {
	return Object{
		"pass_id":  String(r.PassID),
		"seq":      Int(r.Seq),
		"cell":     String(r.Cell),
		"value":    Int(r.Value),
		"resolved": Bool(r.Resolved),
		"changed":  Bool(r.Changed),
	}
}

// Object returns the canonical form of the pass.
func (p PassRecord) Object() Object {
	obj := Object{
		"id":     String(p.ID),
		"origin": String(p.Origin),
		"seq":    Int(p.Seq),
		"steps":  Int(int64(p.Steps)),
	}
	if p.GraphHash != "" {
		obj["graph_hash"] = String(p.GraphHash)
	}
	return obj
}
