package db

import (
	"strings"
)

// Query helps build SQL queries using bind parameters.
// Use Unsafe to write the static parts of a query and Param(s) to add bind
// parameters. The final query and parameters can be retrieved using Get.
//
// The zero value is ready to use.
type Query struct {
	b      strings.Builder
	params []any
}

// Unsafe writes a non-parameterized part of a query.
// Never pass user input to Unsafe.
func (q *Query) Unsafe(s string) *Query {
	q.b.WriteString(s)
	return q
}

// Param writes a single bind parameter.
func (q *Query) Param(v any) *Query {
	q.b.WriteString("?")
	q.params = append(q.params, v)
	return q
}

// Params writes multiple bind parameters separated by commas.
func (q *Query) Params(v ...any) *Query {
	for i, p := range v {
		if i > 0 {
			q.b.WriteString(", ")
		}
		q.Param(p)
	}
	return q
}

// Set writes a "column = ?" assignment, prefixed by a comma for all but the
// first call on a query with a SET clause.
func (q *Query) Set(first bool, column string, v any) *Query {
	if !first {
		q.b.WriteString(", ")
	}
	q.b.WriteString(column)
	q.b.WriteString(" = ")
	return q.Param(v)
}

// Get returns the constructed query and parameter values.
func (q *Query) Get() (string, []any) {
	return q.b.String(), q.params
}

// AnySlice converts a typed slice so it can be passed to Params.
func AnySlice[T any](s []T) []any {
	out := make([]any, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	return out
}
