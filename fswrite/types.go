// Package fswrite implements write message construction, precondition and
// update-mask derivation, and the batch/commit protocol.
package fswrite

import (
	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fspath"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Kind distinguishes the write operation shapes of the Write tagged union.
type Kind int

const (
	KindCreate Kind = iota
	KindSetReplace
	KindSetMerge
	KindSetMergeFields
	KindUpdate
	KindDelete
)

// Precondition is the server-evaluated write guard.
type Precondition struct {
	// set indicates a precondition is present at all.
	set bool
	// exists, when existsSet is true, requests currentDocument.exists = exists.
	existsSet bool
	exists    bool
	// updateTime, when non-nil, requests currentDocument.updateTime.
	updateTime *timestamppb.Timestamp
}

// NoPrecondition is the absence of a precondition.
var NoPrecondition = Precondition{}

// ExistsPrecondition requires the document to exist or not exist.
func ExistsPrecondition(exists bool) Precondition {
	return Precondition{set: true, existsSet: true, exists: exists}
}

// UpdateTimePrecondition requires the document's last update time to match.
func UpdateTimePrecondition(t *timestamppb.Timestamp) Precondition {
	return Precondition{set: true, updateTime: t}
}

func (p Precondition) encode() *pb.Precondition {
	if !p.set {
		return nil
	}
	if p.updateTime != nil {
		return &pb.Precondition{ConditionType: &pb.Precondition_UpdateTime{UpdateTime: p.updateTime}}
	}
	return &pb.Precondition{ConditionType: &pb.Precondition_Exists{Exists: p.exists}}
}

// Input is one field-path entry in a write's input map: exactly one of a
// plain Value or a Transform sentinel.
type Input struct {
	Value     fsvalue.Value
	Transform *fsvalue.Transform
	isValue   bool
}

// PlainValue wraps a regular field value.
func PlainValue(v fsvalue.Value) Input { return Input{Value: v, isValue: true} }

// TransformValue wraps a field-transform sentinel.
func TransformValue(t fsvalue.Transform) Input { return Input{Transform: &t} }

func (i Input) isDeleteField() bool {
	return i.Transform != nil && i.Transform.Kind == fsvalue.TransformDeleteField
}

// FieldInput pairs one parsed field path with its value or transform
// sentinel. Entries stay flattened because the update mask needs the dotted
// path while the document body needs the re-nested map; Encode derives each
// shape from the same entries.
type FieldInput struct {
	Path  fspath.Field
	Input Input
}

// Op is one constructed write operation, ready for batching and encoding.
type Op struct {
	Kind         Kind
	DocumentPath string
	// Fields holds the flattened (field path -> input) entries, sorted by
	// path, for Create/Set/Update kinds.
	Fields []FieldInput
	// MergeFields restricts a KindSetMergeFields write's effective mask and
	// Fields to this explicit set, in caller order.
	MergeFields  []fspath.Field
	Precondition Precondition
}
