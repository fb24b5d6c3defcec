// Package engine executes compiled queries and shapes their results.
//
// Execution is split between the engine and a Backend. The engine owns
// the query lifecycle:
//
//  1. compile the IR into a content plan and a count plan
//  2. page the content plan and hand it to the backend
//  3. shape every returned row into an ordered record
//  4. derive the total, running the count plan only when the page
//     alone cannot tell it
//
// The backend only runs plans. It returns either positional tuples or
// structured entities, depending on the plan's shape.
//
// Shaping names the output fields by precedence: the grouping fields and
// aggregate alias of a grouped query, else the visible projections, else
// every top-level member of the view in declaration order.
//
// Grammar failures reported by the backend are remapped to
// dqerr.CodeQueryGrammar with the backend's diagnostic code. Every other
// backend failure is returned unchanged.
package engine
