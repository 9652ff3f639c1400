package fsbundle

import (
	"sort"
	"time"

	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsquery"
	"github.com/dataloom-dev/fsadmin/fsvalue"
)

// AddDocument registers a document's snapshot for inclusion in the bundle,
// optionally tagging it as a result of queryName (pass "" for a bare
// document add). Repeated adds of the same document path accumulate their
// query-name tags; the first add's exists/fields win.
func (b *Builder) AddDocument(name string, exists bool, fields map[string]fsvalue.Value, readTime time.Time, queryName string) {
	e, ok := b.docs[name]
	if !ok {
		e = &documentEntry{name: name, exists: exists, fields: fields, readTime: readTime}
		b.docs[name] = e
		b.docOrder = append(b.docOrder, name)
	}
	if queryName != "" {
		e.queryNames = append(e.queryNames, queryName)
	}
}

// AddNamedQuery registers a query under name for bundle hydration. A
// duplicate name is rejected with invalidArgument.
func (b *Builder) AddNamedQuery(name, parentPath string, q fsquery.Query, readTime time.Time) error {
	if _, exists := b.queries[name]; exists {
		return fserrors.New(fserrors.CodeInvalidArgument, "bundle already has a named query %q", name)
	}
	b.queries[name] = &namedQueryEntry{name: name, parentPath: parentPath, query: q, readTime: readTime}
	b.queryOrder = append(b.queryOrder, name)
	return nil
}

// sortedQueryNames returns e's query-name tags in sorted order for
// deterministic emission.
func (e *documentEntry) sortedQueryNames() []string {
	names := append([]string(nil), e.queryNames...)
	sort.Strings(names)
	return names
}
