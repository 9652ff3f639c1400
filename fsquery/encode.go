package fsquery

import (
	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func fieldRef(path string) *pb.StructuredQuery_FieldReference {
	return &pb.StructuredQuery_FieldReference{FieldPath: path}
}

func encodeDirection(d Direction) pb.StructuredQuery_Direction {
	if d == Descending {
		return pb.StructuredQuery_DESCENDING
	}
	return pb.StructuredQuery_ASCENDING
}

func encodeUnaryOrFieldFilter(f Filter) *pb.StructuredQuery_Filter {
	if op, ok := unaryOp(f.Op, f.Value); ok {
		return &pb.StructuredQuery_Filter{
			FilterType: &pb.StructuredQuery_Filter_UnaryFilter{
				UnaryFilter: &pb.StructuredQuery_UnaryFilter{
					OperandType: &pb.StructuredQuery_UnaryFilter_Field{Field: fieldRef(f.Field.String())},
					Op:          op,
				},
			},
		}
	}
	return &pb.StructuredQuery_Filter{
		FilterType: &pb.StructuredQuery_Filter_FieldFilter{
			FieldFilter: &pb.StructuredQuery_FieldFilter{
				Field: fieldRef(f.Field.String()),
				Op:    encodeFieldOp(f.Op),
				Value: encodeFilterValue(f),
			},
		},
	}
}

// unaryOp reports whether f.Op/value combination serializes as a
// UnaryFilter (isNull/isNan), the wire's special-casing for those two
// operators.
func unaryOp(op Op, v fsvalue.Value) (pb.StructuredQuery_UnaryFilter_Operator, bool) {
	if op != Equal {
		return 0, false
	}
	if v.Kind() == fsvalue.KindNull {
		return pb.StructuredQuery_UnaryFilter_IS_NULL, true
	}
	if v.Kind() == fsvalue.KindDouble && v.IsNaN() {
		return pb.StructuredQuery_UnaryFilter_IS_NAN, true
	}
	return 0, false
}

func encodeFieldOp(op Op) pb.StructuredQuery_FieldFilter_Operator {
	switch op {
	case Equal:
		return pb.StructuredQuery_FieldFilter_EQUAL
	case NotEqual:
		return pb.StructuredQuery_FieldFilter_NOT_EQUAL
	case LessThan:
		return pb.StructuredQuery_FieldFilter_LESS_THAN
	case LessThanOrEqual:
		return pb.StructuredQuery_FieldFilter_LESS_THAN_OR_EQUAL
	case GreaterThan:
		return pb.StructuredQuery_FieldFilter_GREATER_THAN
	case GreaterThanOrEqual:
		return pb.StructuredQuery_FieldFilter_GREATER_THAN_OR_EQUAL
	case ArrayContains:
		return pb.StructuredQuery_FieldFilter_ARRAY_CONTAINS
	case ArrayContainsAny:
		return pb.StructuredQuery_FieldFilter_ARRAY_CONTAINS_ANY
	case In:
		return pb.StructuredQuery_FieldFilter_IN
	case NotIn:
		return pb.StructuredQuery_FieldFilter_NOT_IN
	default:
		return pb.StructuredQuery_FieldFilter_OPERATOR_UNSPECIFIED
	}
}

func encodeFilterValue(f Filter) *pb.Value {
	switch f.Op {
	case In, NotIn, ArrayContainsAny:
		if f.Field.IsDocumentID() {
			vals := make([]*pb.Value, len(f.RefValues))
			for i, r := range f.RefValues {
				vals[i] = fsvalue.Encode(fsvalue.Reference(r))
			}
			return &pb.Value{ValueType: &pb.Value_ArrayValue{ArrayValue: &pb.ArrayValue{Values: vals}}}
		}
		vals := make([]*pb.Value, len(f.Values))
		for i, v := range f.Values {
			vals[i] = fsvalue.Encode(v)
		}
		return &pb.Value{ValueType: &pb.Value_ArrayValue{ArrayValue: &pb.ArrayValue{Values: vals}}}
	default:
		if f.Field.IsDocumentID() && len(f.RefValues) == 1 {
			return fsvalue.Encode(fsvalue.Reference(f.RefValues[0]))
		}
		return fsvalue.Encode(f.Value)
	}
}

func encodeCursor(c *Cursor) *pb.Cursor {
	if c == nil {
		return nil
	}
	values := make([]*pb.Value, len(c.Values))
	for i, v := range c.Values {
		values[i] = fsvalue.Encode(v)
	}
	return &pb.Cursor{Values: values, Before: c.Before}
}

// ToStructuredQuery renders the query's wire form, applying the
// limitToLast rewrite and the implicit-ordering derivation. Callers
// executing a limitToLast query must reverse the returned document order
// themselves once results are back.
func (q Query) ToStructuredQuery() (*pb.StructuredQuery, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	wq := q.rewriteForLimitToLast()

	sq := &pb.StructuredQuery{
		From: []*pb.StructuredQuery_CollectionSelector{
			{CollectionId: wq.CollectionID, AllDescendants: wq.AllDescendants},
		},
		Offset:   wq.offset,
		StartAt:  encodeCursor(wq.startAt),
		EndAt:    encodeCursor(wq.endAt),
	}
	if wq.limit != nil {
		sq.Limit = wrapperspb.Int32(*wq.limit)
	}
	if wq.Projection != nil {
		fields := make([]*pb.StructuredQuery_FieldReference, len(wq.Projection.Paths))
		for i, p := range wq.Projection.Paths {
			fields[i] = fieldRef(p.String())
		}
		sq.Select = &pb.StructuredQuery_Projection{Fields: fields}
	}
	if len(wq.Filters) == 1 {
		sq.Where = encodeUnaryOrFieldFilter(wq.Filters[0])
	} else if len(wq.Filters) > 1 {
		conds := make([]*pb.StructuredQuery_Filter, len(wq.Filters))
		for i, f := range wq.Filters {
			conds[i] = encodeUnaryOrFieldFilter(f)
		}
		sq.Where = &pb.StructuredQuery_Filter{
			FilterType: &pb.StructuredQuery_Filter_CompositeFilter{
				CompositeFilter: &pb.StructuredQuery_CompositeFilter{
					Op:         pb.StructuredQuery_CompositeFilter_AND,
					Filters:    conds,
				},
			},
		}
	}
	for _, o := range wq.Orderings {
		sq.OrderBy = append(sq.OrderBy, &pb.StructuredQuery_Order{
			Field:     fieldRef(o.Field.String()),
			Direction: encodeDirection(o.Direction),
		})
	}
	return sq, nil
}

