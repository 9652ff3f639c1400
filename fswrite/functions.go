package fswrite

import (
	"sort"

	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fspath"
)

// parseFields parses dot-notation keys into FieldInput entries sorted by
// path. Malformed paths, the document-id sentinel, and overlapping paths
// (one a duplicate or prefix of another, which would make the mask and the
// re-nested document body disagree) are rejected.
func parseFields(fields map[string]Input) ([]FieldInput, error) {
	out := make([]FieldInput, 0, len(fields))
	for k, in := range fields {
		p, err := fspath.ParseDotted(k)
		if err != nil {
			return nil, err
		}
		if p.IsDocumentID() {
			return nil, fserrors.New(fserrors.CodeInvalidArgument, "cannot write to the %q sentinel", fspath.DocumentIDSentinel)
		}
		out = append(out, FieldInput{Path: p, Input: in})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.Compare(out[j].Path) < 0 })
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if pathOverlaps(out[i].Path, out[j].Path) {
				return nil, fserrors.New(fserrors.CodeInvalidArgument, "field path %q overlaps field path %q", out[i].Path.String(), out[j].Path.String())
			}
		}
	}
	return out, nil
}

func pathOverlaps(a, b fspath.Field) bool {
	as, bs := a.Segments(), b.Segments()
	if len(as) > len(bs) {
		as, bs = bs, as
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// Create builds a create() op, attaching currentDocument.exists = false.
func Create(documentPath string, fields map[string]Input) (Op, error) {
	parsed, err := parseFields(fields)
	if err != nil {
		return Op{}, err
	}
	if err := rejectDeleteFieldSentinels(parsed); err != nil {
		return Op{}, err
	}
	return Op{
		Kind:         KindCreate,
		DocumentPath: documentPath,
		Fields:       parsed,
		Precondition: ExistsPrecondition(false),
	}, nil
}

// SetReplace builds a set() op with full replacement semantics: no
// precondition. A delete-field sentinel is rejected the same way create()
// rejects it: a full replace has no prior value for the sentinel to remove,
// and silently dropping the field would lose data.
func SetReplace(documentPath string, fields map[string]Input) (Op, error) {
	parsed, err := parseFields(fields)
	if err != nil {
		return Op{}, err
	}
	if err := rejectDeleteFieldSentinels(parsed); err != nil {
		return Op{}, err
	}
	return Op{Kind: KindSetReplace, DocumentPath: documentPath, Fields: parsed}, nil
}

// SetMerge builds a set(merge=true) op: updateMask is every field path
// present in the input after transform extraction.
func SetMerge(documentPath string, fields map[string]Input) (Op, error) {
	parsed, err := parseFields(fields)
	if err != nil {
		return Op{}, err
	}
	return Op{Kind: KindSetMerge, DocumentPath: documentPath, Fields: parsed}, nil
}

// SetMergeFields builds a set(mergeFields=F) op: only values at paths in F
// are serialized; other input keys are dropped.
func SetMergeFields(documentPath string, fields map[string]Input, mergeFields []string) (Op, error) {
	parsed, err := parseFields(fields)
	if err != nil {
		return Op{}, err
	}
	mf := make([]fspath.Field, 0, len(mergeFields))
	for _, m := range mergeFields {
		p, err := fspath.ParseDotted(m)
		if err != nil {
			return Op{}, err
		}
		mf = append(mf, p)
	}
	pruned := parsed[:0:0]
	for _, e := range parsed {
		for _, p := range mf {
			if e.Path.Equal(p) {
				pruned = append(pruned, e)
				break
			}
		}
	}
	return Op{
		Kind:         KindSetMergeFields,
		DocumentPath: documentPath,
		Fields:       pruned,
		MergeFields:  mf,
	}, nil
}

// Update builds an update(map, precondition) op. Precondition defaults to
// exists=true when none is supplied.
func Update(documentPath string, fields map[string]Input, prec Precondition) (Op, error) {
	parsed, err := parseFields(fields)
	if err != nil {
		return Op{}, err
	}
	if !prec.set {
		prec = ExistsPrecondition(true)
	}
	return Op{Kind: KindUpdate, DocumentPath: documentPath, Fields: parsed, Precondition: prec}, nil
}

// Delete builds a delete(precondition) op.
func Delete(documentPath string, prec Precondition) Op {
	return Op{Kind: KindDelete, DocumentPath: documentPath, Precondition: prec}
}

// rejectDeleteFieldSentinels enforces the rule that a delete-field sentinel
// is only valid in an update or a set-with-merge. Create and set-replace
// reject it.
func rejectDeleteFieldSentinels(fields []FieldInput) error {
	for _, e := range fields {
		if e.Input.isDeleteField() {
			return fserrors.New(fserrors.CodeInvalidArgument, "deleteField() sentinel at %q is only valid in update() or set() with merge", e.Path.String())
		}
	}
	return nil
}

// updateMask computes the op's update mask in deterministic order. For an
// update it is every field path present in the input, whether that path's
// input was a plain value or a transform; for a set(merge) it is every path
// left after transform extraction (plain values and delete-field sentinels).
func updateMask(op Op) []string {
	switch op.Kind {
	case KindSetMergeFields:
		out := make([]string, len(op.MergeFields))
		for i, p := range op.MergeFields {
			out[i] = p.String()
		}
		return out
	case KindSetMerge:
		out := make([]string, 0, len(op.Fields))
		for _, e := range op.Fields {
			if e.Input.Transform != nil && !e.Input.isDeleteField() {
				continue
			}
			out = append(out, e.Path.String())
		}
		return out
	case KindUpdate:
		out := make([]string, len(op.Fields))
		for i, e := range op.Fields {
			out[i] = e.Path.String()
		}
		return out
	default:
		return nil
	}
}

// splitValuesAndTransforms separates an op's entries into the plain values
// that are re-nested into the document body and the sentinels that instead
// populate updateTransforms. Delete-field sentinels contribute to neither:
// they exist only so their path reaches the mask.
func splitValuesAndTransforms(fields []FieldInput) (values, transforms []FieldInput) {
	for _, e := range fields {
		switch {
		case e.Input.isValue:
			values = append(values, e)
		case e.Input.isDeleteField():
			// contributes only to the mask
		case e.Input.Transform != nil:
			transforms = append(transforms, e)
		}
	}
	return values, transforms
}
