// Package request defines the untyped client form of a query.
//
// A Request is what callers send: every operator and value is still a
// string. The normalize package turns it into a queryir.DynaQuery.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Request is a client query description.
type Request struct {
	TargetView  string       `json:"targetView,omitempty" yaml:"targetView,omitempty"`
	Projections []Projection `json:"projections,omitempty" yaml:"projections,omitempty"`
	Filter      *Filter      `json:"filter,omitempty" yaml:"filter,omitempty"`
	Group       *Group       `json:"group,omitempty" yaml:"group,omitempty"`
	Orders      []Order      `json:"orders,omitempty" yaml:"orders,omitempty"`
}

// Projection names an output field. Visible defaults to true when omitted.
type Projection struct {
	Field   string `json:"field" yaml:"field"`
	Visible *bool  `json:"visible,omitempty" yaml:"visible,omitempty"`
}

// IsVisible reports the effective visibility.
func (p Projection) IsVisible() bool {
	return p.Visible == nil || *p.Visible
}

// FilterKind is the deduced variant of a Filter node.
type FilterKind int

const (
	FilterSimple FilterKind = iota + 1
	FilterComposite
	FilterAggregate
)

// Filter is one node of a filter tree. The variant is deduced from the
// fields that are set:
//
//	{filters, connector}             composite
//	{aggregator, operator, values}   aggregate (HAVING only)
//	{field, operator, values}        simple
type Filter struct {
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Values   Values `json:"values,omitempty" yaml:"values,omitempty"`

	Filters   []*Filter `json:"filters,omitempty" yaml:"filters,omitempty"`
	Connector string    `json:"connector,omitempty" yaml:"connector,omitempty"`

	Aggregator *Aggregator `json:"aggregator,omitempty" yaml:"aggregator,omitempty"`
}

// Kind deduces the variant of the node.
func (f *Filter) Kind() FilterKind {
	switch {
	case f.Filters != nil || f.Connector != "":
		return FilterComposite
	case f.Aggregator != nil:
		return FilterAggregate
	default:
		return FilterSimple
	}
}

// Aggregator names an aggregate function over a field.
type Aggregator struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Alias    string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// Group is the grouping clause.
type Group struct {
	Fields     []string    `json:"fields" yaml:"fields"`
	Aggregator *Aggregator `json:"aggregator,omitempty" yaml:"aggregator,omitempty"`
	Having     *Filter     `json:"having,omitempty" yaml:"having,omitempty"`
	Alias      string      `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// Order is one ordering clause; Operator is ASC or DESC.
type Order struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Sequence int    `json:"sequence" yaml:"sequence"`
}

// Values is a list of raw literal values. Clients may send numbers and
// booleans; they are kept as their literal text.
type Values []string

// UnmarshalJSON accepts strings, numbers and booleans.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("values must be a list: %w", err)
	}
	out := make(Values, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return fmt.Errorf("values[%d]: %w", i, err)
			}
			out = append(out, s)
			continue
		}
		switch {
		case bytes.Equal(item, []byte("null")):
			return fmt.Errorf("values[%d]: null is not a value", i)
		case len(item) > 0 && (item[0] == '{' || item[0] == '['):
			return fmt.Errorf("values[%d]: expected a scalar", i)
		}
		out = append(out, string(item))
	}
	*v = out
	return nil
}

// UnmarshalYAML accepts a sequence of scalars.
func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: values must be a list", node.Line)
	}
	out := make(Values, 0, len(node.Content))
	for i, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: values[%d]: expected a scalar", item.Line, i)
		}
		out = append(out, item.Value)
	}
	*v = out
	return nil
}

// Decode parses a request from JSON or YAML.
func Decode(data []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return DecodeJSON(trimmed)
	}
	return DecodeYAML(data)
}

// DecodeJSON parses a JSON request. Unknown fields are rejected.
func DecodeJSON(data []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

// DecodeYAML parses a YAML request. Unknown fields are rejected.
func DecodeYAML(data []byte) (*Request, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}
