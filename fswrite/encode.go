package fswrite

import (
	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fsvalue"
)

// Encode renders the op as a wire Write message. documentName is the fully
// qualified resource path for the document. The update mask carries dotted
// field paths while the document body carries the re-nested field map; both
// derive from the op's flattened entries.
func Encode(op Op, documentName string) *pb.Write {
	w := &pb.Write{CurrentDocument: op.Precondition.encode()}

	if op.Kind == KindDelete {
		w.Operation = &pb.Write_Delete{Delete: documentName}
		return w
	}

	values, transforms := splitValuesAndTransforms(op.Fields)
	w.Operation = &pb.Write_Update{
		Update: &pb.Document{Name: documentName, Fields: fsvalue.EncodeMap(nestFields(values))},
	}

	if mask := updateMask(op); mask != nil {
		w.UpdateMask = &pb.DocumentMask{FieldPaths: mask}
	}

	for _, e := range transforms {
		if ft := fsvalue.EncodeTransform(e.Path.String(), *e.Input.Transform); ft != nil {
			w.UpdateTransforms = append(w.UpdateTransforms, ft)
		}
	}
	return w
}

// nestFields reconstructs the nested document body from flattened entries:
// an "address.city" entry lands as {"address": {"city": ...}} rather than a
// top-level key containing a literal dot.
func nestFields(entries []FieldInput) map[string]fsvalue.Value {
	root := map[string]any{}
	for _, e := range entries {
		setNested(root, e.Path.Segments(), e.Input.Value)
	}
	return finishNested(root)
}

func setNested(node map[string]any, segments []string, v fsvalue.Value) {
	if len(segments) == 1 {
		node[segments[0]] = v
		return
	}
	child, ok := node[segments[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		node[segments[0]] = child
	}
	setNested(child, segments[1:], v)
}

func finishNested(node map[string]any) map[string]fsvalue.Value {
	out := make(map[string]fsvalue.Value, len(node))
	for k, v := range node {
		switch t := v.(type) {
		case fsvalue.Value:
			out[k] = t
		case map[string]any:
			out[k] = fsvalue.Map(finishNested(t))
		}
	}
	return out
}
