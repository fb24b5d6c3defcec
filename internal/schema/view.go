package schema

import (
	"github.com/roach88/dynaquery/internal/record"
)

// Cardinality distinguishes to-one from to-many relations.
type Cardinality int

const (
	ToOne Cardinality = iota + 1
	ToMany
)

func (c Cardinality) String() string {
	if c == ToMany {
		return "many"
	}
	return "one"
}

// FieldMap maps a dotted field path to its resolved field.
type FieldMap map[string]*Field

// Accessor reads a value from a structured row.
type Accessor func(*Entity) any

// Field is an addressable scalar leaf of a view.
type Field struct {
	// Path is the dotted path from the view root ("customer.name").
	Path string
	// Local is the path relative to the owning entity ("name").
	Local string
	// Column is the backing column on the owner's table.
	Column string
	Kind   Kind
	// Enum lists the allowed names for KindEnum.
	Enum []string
	// Relation is the owning relation, nil for fields on the view's own table.
	Relation *Relation
}

// Value resolves the field against a root entity, following the owning
// relation when there is one. To-many relations yield a fresh []any.
func (f *Field) Value(root *Entity) any {
	if f.Relation == nil {
		return root.Values[f.Local]
	}
	related := root.Related[f.Relation.Name]
	if f.Relation.Cardinality == ToOne {
		if len(related) == 0 {
			return nil
		}
		return related[0].Values[f.Local]
	}
	out := make([]any, len(related))
	for i, child := range related {
		out[i] = child.Values[f.Local]
	}
	return out
}

// MemberKind tells the declared shape of a member.
type MemberKind int

const (
	MemberScalar MemberKind = iota + 1
	MemberComposite
	MemberRelation
)

// Member is a declared member in declaration order.
type Member struct {
	Name string
	Kind MemberKind

	Field    *Field    // MemberScalar
	Members  []*Member // MemberComposite and MemberRelation
	Relation *Relation // MemberRelation
}

// valueOn reads the member from the entity that owns it.
func (m *Member) valueOn(e *Entity) any {
	switch m.Kind {
	case MemberScalar:
		return e.Values[m.Field.Local]
	case MemberComposite:
		return membersRecord(m.Members, e)
	case MemberRelation:
		related := e.Related[m.Relation.Name]
		if m.Relation.Cardinality == ToOne {
			if len(related) == 0 {
				return nil
			}
			return membersRecord(m.Members, related[0])
		}
		out := make([]*record.Record, len(related))
		for i, child := range related {
			out[i] = membersRecord(m.Members, child)
		}
		return out
	}
	return nil
}

func membersRecord(members []*Member, e *Entity) *record.Record {
	r := record.New(len(members))
	for _, m := range members {
		r.Set(m.Name, m.valueOn(e))
	}
	return r
}

// Relation is a related table joined to the view.
type Relation struct {
	// Name is the member name and the join alias.
	Name        string
	Table       string
	Key         string
	Cardinality Cardinality
	Local       string
	Foreign     string
	Members     []*Member

	columns map[string]*Field
}

// ColumnField returns the field backed by a column of the related table.
func (r *Relation) ColumnField(column string) (*Field, bool) {
	f, ok := r.columns[column]
	return f, ok
}

// View is a registered, immutable view.
type View struct {
	Name      string
	Table     string
	Key       string
	Members   []*Member
	Relations []*Relation

	fields    FieldMap
	paths     []string
	columns   map[string]*Field
	accessors map[string]Accessor
}

// Fields returns the view's field map. Callers must not modify it.
func (v *View) Fields() FieldMap {
	return v.fields
}

// Field looks up an addressable field path.
func (v *View) Field(path string) (*Field, bool) {
	f, ok := v.fields[path]
	return f, ok
}

// FieldPaths returns every addressable path in declaration order.
func (v *View) FieldPaths() []string {
	out := make([]string, len(v.paths))
	copy(out, v.paths)
	return out
}

// MemberNames returns the top-level member names in declaration order.
func (v *View) MemberNames() []string {
	out := make([]string, len(v.Members))
	for i, m := range v.Members {
		out[i] = m.Name
	}
	return out
}

// ColumnField returns the field backed by a column of the view's own table.
func (v *View) ColumnField(column string) (*Field, bool) {
	f, ok := v.columns[column]
	return f, ok
}

// Accessor returns the resolved accessor for a field path or a top-level member.
func (v *View) Accessor(name string) (Accessor, bool) {
	a, ok := v.accessors[name]
	return a, ok
}
