package fsquery

import (
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fspath"
	"github.com/dataloom-dev/fsadmin/fsvalue"
)

// New builds a query rooted at parentPath over collectionID.
func New(parentPath, collectionID string, allDescendants bool) Query {
	return Query{ParentPath: parentPath, CollectionID: collectionID, AllDescendants: allDescendants}
}

// Where adds a filter. Rejected after any cursor has been set.
func (q Query) Where(field fspath.Field, op Op, value fsvalue.Value) Query {
	if q.buildErr != nil {
		return q
	}
	if q.cursorSet {
		q.buildErr = fserrors.New(fserrors.CodeInvalidArgument, "where() cannot be called after a cursor (startAt/startAfter/endAt/endBefore) has been set")
		return q
	}
	nq := q.clone()
	nq.Filters = append(nq.Filters, Filter{Field: field, Op: op, Value: value})
	return nq
}

// WhereIn adds an in/not-in/array-contains-any filter, requiring a
// non-empty value list; for documentId fields the values must be
// document reference paths (refValues).
func (q Query) WhereIn(field fspath.Field, op Op, values []fsvalue.Value, refValues []string) Query {
	if q.buildErr != nil {
		return q
	}
	if q.cursorSet {
		q.buildErr = fserrors.New(fserrors.CodeInvalidArgument, "where() cannot be called after a cursor has been set")
		return q
	}
	if field.IsDocumentID() {
		if len(refValues) == 0 {
			q.buildErr = fserrors.New(fserrors.CodeInvalidArgument, "%s on documentId requires a non-empty list of DocumentReferences", op)
			return q
		}
	} else if len(values) == 0 {
		q.buildErr = fserrors.New(fserrors.CodeInvalidArgument, "%s requires a non-empty value list", op)
		return q
	}
	nq := q.clone()
	nq.Filters = append(nq.Filters, Filter{Field: field, Op: op, Values: values, RefValues: refValues})
	return nq
}

// OrderBy adds an ordering. Rejected after any cursor has been set.
// orderBy(documentId) requires the value to ultimately resolve to a
// DocumentReference at cursor-build time; that constraint is checked when a
// cursor is set (StartAt/StartAfter/EndAt/EndBefore), which records an
// invalidArgument error for a non-reference value at that position.
func (q Query) OrderBy(field fspath.Field, dir Direction) Query {
	if q.buildErr != nil {
		return q
	}
	if q.cursorSet {
		q.buildErr = fserrors.New(fserrors.CodeInvalidArgument, "orderBy() cannot be called after a cursor has been set")
		return q
	}
	nq := q.clone()
	nq.Orderings = append(nq.Orderings, Ordering{Field: field, Direction: dir})
	return nq
}

// Limit sets limit() (first n results).
func (q Query) Limit(n int32) Query {
	q.limit = &n
	q.LimitType = LimitFirst
	return q
}

// LimitToLast sets limitToLast() (last n results). Requires at least one
// explicit ordering at execution time.
func (q Query) LimitToLast(n int32) Query {
	q.limit = &n
	q.LimitType = LimitLast
	return q
}

// Offset sets offset().
func (q Query) Offset(n int32) Query {
	q.offset = n
	return q
}

// Select sets the field projection.
func (q Query) Select(paths ...fspath.Field) Query {
	q.Projection = &Projection{Paths: paths}
	return q
}

func (q Query) withCursor(c Cursor, start bool) Query {
	if q.buildErr != nil {
		return q
	}
	nq := q.clone()
	for i, o := range nq.Orderings {
		if i >= len(c.Values) {
			break
		}
		if o.Field.IsDocumentID() && c.Values[i].Kind() != fsvalue.KindReference {
			nq.buildErr = fserrors.New(fserrors.CodeInvalidArgument, "cursor values for an orderBy(documentId) position must be DocumentReferences")
			return nq
		}
	}
	nq.cursorSet = true
	if start {
		nq.startAt = &c
	} else {
		nq.endAt = &c
	}
	return nq
}

// StartAt sets an inclusive start cursor.
func (q Query) StartAt(values ...fsvalue.Value) Query {
	return q.withCursor(Cursor{Before: true, Values: values}, true)
}

// StartAfter sets an exclusive start cursor.
func (q Query) StartAfter(values ...fsvalue.Value) Query {
	return q.withCursor(Cursor{Before: false, Values: values}, true)
}

// EndAt sets an inclusive end cursor.
func (q Query) EndAt(values ...fsvalue.Value) Query {
	return q.withCursor(Cursor{Before: false, Values: values}, false)
}

// EndBefore sets an exclusive end cursor.
func (q Query) EndBefore(values ...fsvalue.Value) Query {
	return q.withCursor(Cursor{Before: true, Values: values}, false)
}

// WithImplicitOrderingForCursor derives the implicit ordering for cursors
// built from a document snapshot: if there is no explicit
// ordering, the first inequality filter's field becomes the first ordering;
// then orderBy(documentId) is appended (using the direction of the last
// existing ordering, default ascending) if not already present.
func (q Query) WithImplicitOrderingForCursor() Query {
	nq := q.clone()
	if len(nq.Orderings) == 0 {
		for _, f := range nq.Filters {
			if isInequality(f.Op) {
				nq.Orderings = append(nq.Orderings, Ordering{Field: f.Field, Direction: Ascending})
				break
			}
		}
	}
	hasDocID := false
	lastDir := Ascending
	if len(nq.Orderings) > 0 {
		lastDir = nq.Orderings[len(nq.Orderings)-1].Direction
	}
	for _, o := range nq.Orderings {
		if o.Field.IsDocumentID() {
			hasDocID = true
			break
		}
	}
	if !hasDocID {
		nq.Orderings = append(nq.Orderings, Ordering{Field: fspath.DocumentID, Direction: lastDir})
	}
	return nq
}

func isInequality(op Op) bool {
	switch op {
	case LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual, NotEqual, NotIn:
		return true
	}
	return false
}

// Validate enforces the execution-time rules not already caught by the
// builder chain: limitToLast requires an explicit ordering.
func (q Query) Validate() error {
	if q.buildErr != nil {
		return q.buildErr
	}
	if q.LimitType == LimitLast && len(q.Orderings) == 0 {
		return fserrors.New(fserrors.CodeInvalidArgument, "limitToLast() queries require at least one explicit orderBy() clause")
	}
	return nil
}

// rewriteForLimitToLast applies the limitToLast wire-time rewrite:
// orderings are reversed, and start/end cursors are swapped with their
// before flags inverted. Results are understood to arrive (or be
// re-reversed by the client) so the user observes the original ordering.
func (q Query) rewriteForLimitToLast() Query {
	if q.LimitType != LimitLast {
		return q
	}
	nq := q.clone()
	for i := range nq.Orderings {
		nq.Orderings[i].Direction = nq.Orderings[i].Direction.reversed()
	}
	startAt, endAt := nq.endAt, nq.startAt
	if startAt != nil {
		c := *startAt
		c.Before = !c.Before
		startAt = &c
	}
	if endAt != nil {
		c := *endAt
		c.Before = !c.Before
		endAt = &c
	}
	nq.startAt, nq.endAt = startAt, endAt
	return nq
}
