// Package fsbundle builds the length-prefixed JSON element stream: a
// metadata record, followed by one documentMetadata(+document)
// pair per included document and one namedQuery record per named query.
package fsbundle

import (
	"time"

	"github.com/dataloom-dev/fsadmin/fsquery"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/google/uuid"
)

const bundleVersion = 1

// documentEntry accumulates one added document's state across repeated adds
// under different query names.
type documentEntry struct {
	name       string
	exists     bool
	fields     map[string]fsvalue.Value
	readTime   time.Time
	queryNames []string
}

// namedQueryEntry is one query registered under a name.
type namedQueryEntry struct {
	name       string
	parentPath string
	query      fsquery.Query
	readTime   time.Time
}

// Builder accumulates documents and named queries before a single Build
// call renders the bundle byte stream.
type Builder struct {
	id string

	docOrder []string
	docs     map[string]*documentEntry

	queryOrder []string
	queries    map[string]*namedQueryEntry
}

// New starts a bundle builder identified by id.
func New(id string) *Builder {
	return &Builder{
		id:      id,
		docs:    map[string]*documentEntry{},
		queries: map[string]*namedQueryEntry{},
	}
}

// NewWithGeneratedID starts a bundle builder identified by a fresh random
// id, for callers that don't need a caller-chosen bundle identity.
func NewWithGeneratedID() *Builder {
	return New(uuid.NewString())
}
