package schema

// ViewDef declares a queryable view.
//
// Definitions come either from Go code or from CUE files (see LoadDir).
// The json tags double as the CUE field names.
type ViewDef struct {
	Name    string      `json:"name"`
	Table   string      `json:"table"`
	Key     string      `json:"key"`
	Members []MemberDef `json:"members"`
}

// MemberDef declares one member of a view or relation.
//
// The member kind is deduced from which fields are set:
//   - Relation set: a related structure joined through Relation
//   - Members set: a composite whose leaves live on the owner's table
//   - otherwise: a scalar column of the given Type
type MemberDef struct {
	Name string `json:"name"`

	// Column defaults to the member path joined with underscores.
	Column string   `json:"column,omitempty"`
	Type   string   `json:"type,omitempty"`
	Values []string `json:"values,omitempty"`

	Members  []MemberDef  `json:"members,omitempty"`
	Relation *RelationDef `json:"relation,omitempty"`
}

// RelationDef declares how a related table joins to the view's table.
type RelationDef struct {
	// Cardinality is "one" or "many".
	Cardinality string `json:"cardinality"`
	Table       string `json:"table"`
	Key         string `json:"key"`

	// Local is the owner column, Foreign the related column it matches.
	Local   string `json:"local"`
	Foreign string `json:"foreign"`
}
