// Package dqerr defines the error taxonomy shared by every DynaQuery layer.
package dqerr

import (
	"errors"
	"fmt"
)

// Code identifies an error condition.
type Code string

const (
	// Schema errors.
	CodeUnknownView     Code = "UNKNOWN_VIEW"
	CodeSchemaDiscovery Code = "SCHEMA_DISCOVERY"

	// Grammar/validation errors raised while normalizing a request.
	CodeUnsupportedFilterOperator    Code = "UNSUPPORTED_FILTER_OPERATOR"
	CodeUnsupportedSortOperator      Code = "UNSUPPORTED_SORT_OPERATOR"
	CodeUnsupportedAggregateOperator Code = "UNSUPPORTED_AGGREGATE_OPERATOR"
	CodeUnknownField                 Code = "UNKNOWN_FIELD"
	CodeInvalidAlias                 Code = "INVALID_ALIAS"
	CodeValueConversion              Code = "VALUE_CONVERSION"
	CodeInvalidFilter                Code = "INVALID_FILTER"
	CodeInvalidName                  Code = "INVALID_NAME"

	// Backend rejected the compiled query.
	CodeQueryGrammar Code = "QUERY_GRAMMAR"

	CodeNotFound Code = "NOT_FOUND"

	// Compilation contract violation.
	CodeInternal Code = "INTERNAL"
)

// Category groups codes by how a caller should surface them.
type Category int

const (
	CategoryInternal Category = iota
	CategorySchema
	CategoryClient
	CategoryBackend
	CategoryNotFound
)

func (c Category) String() string {
	switch c {
	case CategorySchema:
		return "schema"
	case CategoryClient:
		return "client"
	case CategoryBackend:
		return "backend"
	case CategoryNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Category returns the category the code belongs to.
func (c Code) Category() Category {
	switch c {
	case CodeUnknownView, CodeSchemaDiscovery:
		return CategorySchema
	case CodeUnsupportedFilterOperator, CodeUnsupportedSortOperator,
		CodeUnsupportedAggregateOperator, CodeUnknownField, CodeInvalidAlias,
		CodeValueConversion, CodeInvalidFilter, CodeInvalidName:
		return CategoryClient
	case CodeQueryGrammar:
		return CategoryBackend
	case CodeNotFound:
		return CategoryNotFound
	default:
		return CategoryInternal
	}
}

// Error is a DynaQuery failure with structured context.
//
// Only the fields relevant to the code are set. Message never embeds a
// lower-level parser error; the offending field and type are carried
// separately instead.
type Error struct {
	Code    Code
	Message string

	View     string
	Field    string
	Operator string

	// Type is the expected type name for conversion failures.
	Type string

	// Diagnostic is the backend's own error code for grammar failures.
	Diagnostic string

	// Err is an optional underlying cause (never set for conversion failures).
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Type != "":
		return fmt.Sprintf("%s: %s (field=%s, type=%s)", e.Code, e.Message, e.Field, e.Type)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	case e.Diagnostic != "":
		return fmt.Sprintf("%s: %s (diagnostic=%s)", e.Code, e.Message, e.Diagnostic)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Details returns the populated context fields as a flat map.
func (e *Error) Details() map[string]string {
	d := map[string]string{}
	for k, v := range map[string]string{
		"view":       e.View,
		"field":      e.Field,
		"operator":   e.Operator,
		"type":       e.Type,
		"diagnostic": e.Diagnostic,
	} {
		if v != "" {
			d[k] = v
		}
	}
	return d
}

// CodeOf returns the code of the first *Error in err's chain.
// Errors outside the taxonomy report CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// UnknownView reports a missing or unregistered target view.
func UnknownView(view string) *Error {
	if view == "" {
		return &Error{Code: CodeUnknownView, Message: "target view is required"}
	}
	return &Error{Code: CodeUnknownView, Message: fmt.Sprintf("view %q is not registered", view), View: view}
}

// SchemaDiscovery reports a view declaration that cannot be loaded.
func SchemaDiscovery(err error, format string, args ...any) *Error {
	return &Error{Code: CodeSchemaDiscovery, Message: fmt.Sprintf(format, args...), Err: err}
}

// UnknownField reports a field path absent from the view's field map.
func UnknownField(view, field string) *Error {
	return &Error{
		Code:    CodeUnknownField,
		Message: fmt.Sprintf("unknown field for view %s", view),
		View:    view,
		Field:   field,
	}
}

// UnsupportedFilterOperator reports an operator string outside the closed set.
func UnsupportedFilterOperator(field, op string) *Error {
	return &Error{
		Code:     CodeUnsupportedFilterOperator,
		Message:  fmt.Sprintf("unsupported filter operator %q", op),
		Field:    field,
		Operator: op,
	}
}

// UnsupportedSortOperator reports a sort direction other than ASC or DESC.
func UnsupportedSortOperator(field, op string) *Error {
	return &Error{
		Code:     CodeUnsupportedSortOperator,
		Message:  fmt.Sprintf("unsupported sort operator %q", op),
		Field:    field,
		Operator: op,
	}
}

// UnsupportedAggregateOperator reports an unknown aggregate, or a numeric
// aggregate applied to a non-numeric field.
func UnsupportedAggregateOperator(field, op, reason string) *Error {
	return &Error{
		Code:     CodeUnsupportedAggregateOperator,
		Message:  fmt.Sprintf("unsupported aggregate operator %q: %s", op, reason),
		Field:    field,
		Operator: op,
	}
}

// InvalidAlias reports a missing group alias.
func InvalidAlias() *Error {
	return &Error{Code: CodeInvalidAlias, Message: "group alias must not be empty"}
}

// ValueConversion reports a raw value that does not parse as the field's type.
func ValueConversion(field, typeName string) *Error {
	return &Error{
		Code:    CodeValueConversion,
		Message: "failed to convert filter values to field data type",
		Field:   field,
		Type:    typeName,
	}
}

// InvalidFilter reports a structurally invalid filter node.
func InvalidFilter(field, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidFilter, Message: fmt.Sprintf(format, args...), Field: field}
}

// InvalidName reports an unusable saved query name.
func InvalidName(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidName, Message: fmt.Sprintf(format, args...)}
}

// QueryGrammar wraps a backend rejection of a compiled query.
func QueryGrammar(diagnostic string, err error) *Error {
	return &Error{
		Code:       CodeQueryGrammar,
		Message:    "backend rejected the compiled query",
		Diagnostic: diagnostic,
		Err:        err,
	}
}

// NotFound reports a missing saved query.
func NotFound(id int64) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("saved query %d not found", id)}
}

// Internal reports a compilation contract violation.
func Internal(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}
