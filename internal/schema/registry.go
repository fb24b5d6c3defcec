// Package schema holds the registry of queryable views.
//
// A registry is built once from view declarations and is read-only
// afterwards; concurrent reads need no locking. Building resolves every
// field path to its column and kind, and every path and top-level member
// to an accessor over *Entity, so nothing is inspected at query time.
package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/dynaquery/internal/dqerr"
)

// Registry maps view names to views.
type Registry struct {
	views map[string]*View
	names []string
}

// Build validates the declarations and resolves them into a registry.
// Any inconsistent declaration is a schema discovery error.
func Build(defs ...ViewDef) (*Registry, error) {
	r := &Registry{views: make(map[string]*View, len(defs))}
	for _, def := range defs {
		v, err := buildView(def)
		if err != nil {
			return nil, err
		}
		if _, dup := r.views[v.Name]; dup {
			return nil, dqerr.SchemaDiscovery(nil, "view %q declared twice", v.Name)
		}
		r.views[v.Name] = v
		r.names = append(r.names, v.Name)
	}
	return r, nil
}

// Resolve returns the field map of a registered view.
func (r *Registry) Resolve(name string) (FieldMap, error) {
	v, err := r.View(name)
	if err != nil {
		return nil, err
	}
	return v.fields, nil
}

// IsSupported reports whether name is a registered view.
func (r *Registry) IsSupported(name string) bool {
	_, ok := r.views[name]
	return ok
}

// View returns the handle of a registered view.
func (r *Registry) View(name string) (*View, error) {
	v, ok := r.views[name]
	if !ok {
		return nil, dqerr.UnknownView(name)
	}
	return v, nil
}

// Names returns the registered view names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// builder walks one view declaration.
type builder struct {
	view *View
}

func buildView(def ViewDef) (*View, error) {
	if def.Name == "" {
		return nil, dqerr.SchemaDiscovery(nil, "view name is required")
	}
	if def.Table == "" || def.Key == "" {
		return nil, dqerr.SchemaDiscovery(nil, "view %s: table and key are required", def.Name)
	}

	b := &builder{view: &View{
		Name:      def.Name,
		Table:     def.Table,
		Key:       def.Key,
		fields:    FieldMap{},
		columns:   map[string]*Field{},
		accessors: map[string]Accessor{},
	}}

	members, err := b.members(def.Members, "", nil, true)
	if err != nil {
		return nil, err
	}
	b.view.Members = members

	for _, m := range members {
		b.view.accessors[m.Name] = m.valueOn
	}
	for path, f := range b.view.fields {
		b.view.accessors[path] = f.Value
	}
	return b.view, nil
}

// members resolves sibling declarations. prefix is the path relative to the
// owning entity; rel is the owning relation (nil for the view's own table).
func (b *builder) members(defs []MemberDef, prefix string, rel *Relation, top bool) ([]*Member, error) {
	v := b.view
	seen := map[string]bool{}
	out := make([]*Member, 0, len(defs))

	for _, def := range defs {
		if def.Name == "" || strings.Contains(def.Name, ".") {
			return nil, dqerr.SchemaDiscovery(nil, "view %s: invalid member name %q", v.Name, def.Name)
		}
		if seen[def.Name] {
			return nil, dqerr.SchemaDiscovery(nil, "view %s: member %q declared twice", v.Name, def.Name)
		}
		seen[def.Name] = true

		local := joinPath(prefix, def.Name)
		switch {
		case def.Relation != nil:
			m, err := b.relation(def, top, rel)
			if err != nil {
				return nil, err
			}
			out = append(out, m)

		case len(def.Members) > 0:
			children, err := b.members(def.Members, local, rel, false)
			if err != nil {
				return nil, err
			}
			out = append(out, &Member{Name: def.Name, Kind: MemberComposite, Members: children})

		default:
			f, err := b.scalar(def, local, rel)
			if err != nil {
				return nil, err
			}
			out = append(out, &Member{Name: def.Name, Kind: MemberScalar, Field: f})
		}
	}
	return out, nil
}

func (b *builder) scalar(def MemberDef, local string, rel *Relation) (*Field, error) {
	v := b.view
	kind, ok := ParseKind(def.Type)
	if !ok {
		return nil, dqerr.SchemaDiscovery(nil, "view %s: member %s has unknown type %q", v.Name, local, def.Type)
	}
	if kind == KindEnum && len(def.Values) == 0 {
		return nil, dqerr.SchemaDiscovery(nil, "view %s: enum member %s declares no values", v.Name, local)
	}

	column := def.Column
	if column == "" {
		column = strings.ReplaceAll(local, ".", "_")
	}

	f := &Field{
		Path:     local,
		Local:    local,
		Column:   column,
		Kind:     kind,
		Enum:     append([]string(nil), def.Values...),
		Relation: rel,
	}
	if rel != nil {
		f.Path = joinPath(rel.Name, local)
		rel.columns[column] = f
	} else {
		v.columns[column] = f
	}
	v.fields[f.Path] = f
	v.paths = append(v.paths, f.Path)
	return f, nil
}

func (b *builder) relation(def MemberDef, top bool, owner *Relation) (*Member, error) {
	v := b.view
	if owner != nil {
		return nil, dqerr.SchemaDiscovery(nil, "view %s: relation %s is nested in relation %s", v.Name, def.Name, owner.Name)
	}
	if !top {
		return nil, dqerr.SchemaDiscovery(nil, "view %s: relation %s must be a top-level member", v.Name, def.Name)
	}

	rd := def.Relation
	var card Cardinality
	switch rd.Cardinality {
	case "one":
		card = ToOne
	case "many":
		card = ToMany
	default:
		return nil, dqerr.SchemaDiscovery(nil, "view %s: relation %s has cardinality %q, want one or many", v.Name, def.Name, rd.Cardinality)
	}
	if rd.Table == "" || rd.Key == "" || rd.Local == "" || rd.Foreign == "" {
		return nil, dqerr.SchemaDiscovery(nil, "view %s: relation %s needs table, key, local and foreign", v.Name, def.Name)
	}
	if def.Name == v.Table {
		return nil, dqerr.SchemaDiscovery(nil, "view %s: relation name %s collides with the view table", v.Name, def.Name)
	}
	if len(def.Members) == 0 {
		return nil, dqerr.SchemaDiscovery(nil, "view %s: relation %s declares no members", v.Name, def.Name)
	}

	rel := &Relation{
		Name:        def.Name,
		Table:       rd.Table,
		Key:         rd.Key,
		Cardinality: card,
		Local:       rd.Local,
		Foreign:     rd.Foreign,
		columns:     map[string]*Field{},
	}
	children, err := b.members(def.Members, "", rel, false)
	if err != nil {
		return nil, err
	}
	rel.Members = children
	v.Relations = append(v.Relations, rel)

	return &Member{Name: def.Name, Kind: MemberRelation, Members: children, Relation: rel}, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return fmt.Sprintf("%s.%s", prefix, name)
}
