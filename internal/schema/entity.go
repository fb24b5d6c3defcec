package schema

// Entity is a structured row: column-backed values keyed by their path
// relative to the owner, plus hydrated relations keyed by relation name.
type Entity struct {
	Values  map[string]any
	Related map[string][]*Entity
}

// NewEntity creates an empty entity.
func NewEntity() *Entity {
	return &Entity{
		Values:  map[string]any{},
		Related: map[string][]*Entity{},
	}
}
