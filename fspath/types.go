// Package fspath implements resource paths and field paths: parsing,
// validation, comparison and composition, independent of any wire encoding.
package fspath

import (
	"strings"

	"github.com/dataloom-dev/fsadmin/fserrors"
)

// DocumentIDSentinel is the special field name representing a document's ID
// inside a query or field path.
const DocumentIDSentinel = "__name__"

const documentsSegment = "documents"

// Resource is an ordered sequence of path segments. It distinguishes
// qualified paths (beginning "projects/{p}/databases/{d}/documents/...")
// from relative ones.
type Resource struct {
	segments  []string
	qualified bool
	projectID string
	databaseID string
}

// NewQualifiedResource builds a root-qualified resource path for the given
// project/database, e.g. "projects/P/databases/D/documents".
func NewQualifiedResource(projectID, databaseID string) Resource {
	return Resource{
		segments:   nil,
		qualified:  true,
		projectID:  projectID,
		databaseID: databaseID,
	}
}

// Append returns a new Resource with the given relative segments appended,
// validating each segment (non-empty, not "." or "..", no "/").
func (r Resource) Append(segments ...string) (Resource, error) {
	next := make([]string, 0, len(r.segments)+len(segments))
	next = append(next, r.segments...)
	for _, s := range segments {
		if err := validateSegment(s); err != nil {
			return Resource{}, err
		}
		next = append(next, s)
	}
	r.segments = next
	return r, nil
}

func validateSegment(s string) error {
	if s == "" {
		return fserrors.New(fserrors.CodeInvalidArgument, "path segment must not be empty")
	}
	if s == "." || s == ".." {
		return fserrors.New(fserrors.CodeInvalidArgument, "path segment must not be %q", s)
	}
	if strings.Contains(s, "/") {
		return fserrors.New(fserrors.CodeInvalidArgument, "path segment %q must not contain \"/\"", s)
	}
	return nil
}

// Segments returns the relative segments beneath the documents root.
func (r Resource) Segments() []string {
	out := make([]string, len(r.segments))
	copy(out, r.segments)
	return out
}

// IsDocument reports whether the path identifies a document: the relative
// segment count after the documents root is even and nonzero.
func (r Resource) IsDocument() bool {
	n := len(r.segments)
	return n > 0 && n%2 == 0
}

// IsCollection reports whether the path identifies a collection: the
// relative segment count is odd.
func (r Resource) IsCollection() bool {
	n := len(r.segments)
	return n > 0 && n%2 == 1
}

// ID returns the last segment, the document or collection ID.
func (r Resource) ID() string {
	if len(r.segments) == 0 {
		return ""
	}
	return r.segments[len(r.segments)-1]
}

// Parent returns the resource path one segment shorter, and true if one
// exists.
func (r Resource) Parent() (Resource, bool) {
	if len(r.segments) == 0 {
		return Resource{}, false
	}
	p := r
	p.segments = r.segments[:len(r.segments)-1]
	return p, true
}

// String renders the fully qualified path:
// "projects/P/databases/D/documents[/seg...]".
func (r Resource) String() string {
	var b strings.Builder
	if r.qualified {
		b.WriteString("projects/")
		b.WriteString(r.projectID)
		b.WriteString("/databases/")
		b.WriteString(r.databaseID)
		b.WriteString("/")
		b.WriteString(documentsSegment)
	}
	for _, s := range r.segments {
		b.WriteString("/")
		b.WriteString(s)
	}
	return b.String()
}

// Equal reports structural equality of two resource paths.
func (r Resource) Equal(o Resource) bool {
	return r.String() == o.String()
}

// ParseQualified splits a fully qualified "projects/P/databases/D/documents/..."
// string into its Resource representation.
func ParseQualified(s string) (Resource, error) {
	const prefix = "projects/"
	if !strings.HasPrefix(s, prefix) {
		return Resource{}, fserrors.New(fserrors.CodeInvalidArgument, "resource path %q is not qualified", s)
	}
	parts := strings.Split(s, "/")
	if len(parts) < 5 || parts[0] != "projects" || parts[2] != "databases" || parts[4] != documentsSegment {
		return Resource{}, fserrors.New(fserrors.CodeInvalidArgument, "malformed resource path %q", s)
	}
	r := NewQualifiedResource(parts[1], parts[3])
	rest := parts[5:]
	if len(rest) == 1 && rest[0] == "" {
		rest = nil
	}
	return r.Append(rest...)
}

// Field is an ordered sequence of field segments. A nil/empty Field
// with the DocumentIDSentinel flag denotes the "__name__" sentinel.
type Field struct {
	segments   []string
	documentID bool
}

// DocumentID is the sentinel Field denoting a document's ID within a query
// ordering, filter or projection.
var DocumentID = Field{documentID: true}

// NewField builds an explicit Field from already-split segments, bypassing
// dot-notation parsing — required whenever a segment itself contains "." or
// another special rune.
func NewField(segments ...string) Field {
	return Field{segments: append([]string(nil), segments...)}
}

// ParseDotted parses a dot-separated field path string into segments,
// rejecting the special runes "~*/[]" the wire format reserves.
func ParseDotted(s string) (Field, error) {
	if s == DocumentIDSentinel {
		return DocumentID, nil
	}
	if s == "" {
		return Field{}, fserrors.New(fserrors.CodeInvalidArgument, "field path must not be empty")
	}
	for _, r := range s {
		switch r {
		case '~', '*', '/', '[', ']':
			return Field{}, fserrors.New(fserrors.CodeInvalidArgument, "field path %q contains reserved rune %q; pass segments explicitly", s, r)
		}
	}
	return NewField(strings.Split(s, ".")...), nil
}

// IsDocumentID reports whether this Field is the "__name__" sentinel.
func (f Field) IsDocumentID() bool {
	return f.documentID
}

// Segments returns the ordered field segments; empty for the document ID
// sentinel.
func (f Field) Segments() []string {
	out := make([]string, len(f.segments))
	copy(out, f.segments)
	return out
}

// String renders the wire field-path string: "__name__" for the sentinel,
// otherwise dot-joined segments.
func (f Field) String() string {
	if f.documentID {
		return DocumentIDSentinel
	}
	return strings.Join(f.segments, ".")
}

// Equal reports structural equality of two field paths.
func (f Field) Equal(o Field) bool {
	return f.String() == o.String()
}

// Compare orders two field paths lexicographically by their wire string,
// used to give deterministic ordering to derived update masks.
func (f Field) Compare(o Field) int {
	return strings.Compare(f.String(), o.String())
}
