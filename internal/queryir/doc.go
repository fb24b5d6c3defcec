// Package queryir defines the backend-agnostic query representation.
//
// A DynaQuery is produced by the normalizer from a client request and
// consumed by backend compilers. Values in an IR instance are already
// converted to their field's native Go type; the raw strings they were
// parsed from are kept alongside so a query can be persisted and
// re-normalized later.
//
// STRUCTURE:
//
//	DynaQuery
//	├── TargetView   registered view name
//	├── ProjectBy    ordered output fields with visibility
//	├── Filter       WHERE tree (simple and composite nodes)
//	├── GroupBy      grouping fields, one aggregate, alias, HAVING tree
//	└── OrderBy      sequenced sort keys
//
// SEALED INTERFACES:
//
// Filter is a sealed interface using the marker method pattern. Only
// *SimpleFilter, *CompositeFilter and *AggregateFilter implement it, so
// compilers can switch exhaustively:
//
//	switch f := filter.(type) {
//	case *SimpleFilter:
//	    // <field> <op> <values>
//	case *CompositeFilter:
//	    // AND/OR over children
//	case *AggregateFilter:
//	    // <agg>(<field>) <op> <values>, HAVING only
//	}
//
// CONTRACT:
//
// Validate checks the structure the normalizer guarantees, such as
// operator arity and aggregate filters appearing only under HAVING.
// Compilers call it first and treat any violation as an internal error,
// never as a client mistake.
package queryir
