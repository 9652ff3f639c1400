// Package fsquery implements the immutable query model and its translation
// to/from the wire StructuredQuery form, plus streamed execution.
package fsquery

import (
	"github.com/dataloom-dev/fsadmin/fspath"
	"github.com/dataloom-dev/fsadmin/fsvalue"
)

// Op is a filter operator.
type Op string

const (
	Equal              Op = "=="
	NotEqual           Op = "!="
	LessThan           Op = "<"
	LessThanOrEqual    Op = "<="
	GreaterThan        Op = ">"
	GreaterThanOrEqual Op = ">="
	ArrayContains      Op = "array-contains"
	ArrayContainsAny   Op = "array-contains-any"
	In                 Op = "in"
	NotIn              Op = "not-in"
)

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) reversed() Direction {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

// LimitType distinguishes limit() from limitToLast().
type LimitType int

const (
	LimitFirst LimitType = iota
	LimitLast
)

// Filter is one where() clause.
type Filter struct {
	Field fspath.Field
	Op    Op
	Value fsvalue.Value
	// Values holds the operand list for in/not-in/array-contains-any.
	Values []fsvalue.Value
	// RefValues holds DocumentReference operands when Field is documentId.
	RefValues []string
}

// Ordering is one orderBy() clause.
type Ordering struct {
	Field     fspath.Field
	Direction Direction
}

// Cursor addresses a position in a query's ordered result space.
type Cursor struct {
	Before bool
	Values []fsvalue.Value
}

// Projection restricts the returned fields.
type Projection struct {
	Paths []fspath.Field
}

// Query is the immutable query descriptor. Every builder method
// below returns a new Query with copied+extended options; none
// mutate the receiver.
type Query struct {
	ParentPath         string
	CollectionID       string
	AllDescendants     bool
	Filters            []Filter
	Orderings          []Ordering
	LimitType          LimitType
	Projection         *Projection
	Kindless           bool
	RequireConsistency bool

	startAt *Cursor
	endAt   *Cursor
	limit   *int32
	offset  int32

	// cursorSet records whether any cursor has been applied, so that
	// subsequent Where/OrderBy calls can be rejected.
	cursorSet bool
	// buildErr carries forward the first validation error so builder chains
	// remain purely functional: an invalid step returns a Query carrying the
	// error rather than panicking or aborting the chain.
	buildErr error
}

// Err returns the first validation error accumulated by the builder chain,
// if any.
func (q Query) Err() error {
	return q.buildErr
}

func (q Query) clone() Query {
	nq := q
	nq.Filters = append([]Filter(nil), q.Filters...)
	nq.Orderings = append([]Ordering(nil), q.Orderings...)
	return nq
}
