package fsvalue

import (
	"math/big"
	"strconv"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// DecodeOptions carries the process-scoped decode policy.
type DecodeOptions struct {
	UseBigInt bool
}

// Encode converts a host Value into its wire representation. Field
// transforms never reach here: callers extract them before encoding
// — see ExtractTransforms.
func Encode(v Value) *pb.Value {
	switch v.kind {
	case KindNull:
		return &pb.Value{ValueType: &pb.Value_NullValue{}}
	case KindBool:
		return &pb.Value{ValueType: &pb.Value_BooleanValue{BooleanValue: v.boolV}}
	case KindInt64:
		return &pb.Value{ValueType: &pb.Value_IntegerValue{IntegerValue: v.intV}}
	case KindDouble:
		return &pb.Value{ValueType: &pb.Value_DoubleValue{DoubleValue: v.doubleV}}
	case KindTimestamp:
		return &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: timestamppb.New(v.timeV)}}
	case KindBytes:
		return &pb.Value{ValueType: &pb.Value_BytesValue{BytesValue: v.bytesV}}
	case KindString:
		return &pb.Value{ValueType: &pb.Value_StringValue{StringValue: v.stringV}}
	case KindReference:
		return &pb.Value{ValueType: &pb.Value_ReferenceValue{ReferenceValue: v.refV}}
	case KindGeoPoint:
		return &pb.Value{ValueType: &pb.Value_GeoPointValue{GeoPointValue: &latlng.LatLng{
			Latitude:  v.geoV.Latitude,
			Longitude: v.geoV.Longitude,
		}}}
	case KindArray:
		values := make([]*pb.Value, len(v.arrV))
		for i, e := range v.arrV {
			values[i] = Encode(e)
		}
		return &pb.Value{ValueType: &pb.Value_ArrayValue{ArrayValue: &pb.ArrayValue{Values: values}}}
	case KindMap:
		fields := make(map[string]*pb.Value, len(v.mapV))
		for _, k := range sortedKeys(v.mapV) {
			fields[k] = Encode(v.mapV[k])
		}
		return &pb.Value{ValueType: &pb.Value_MapValue{MapValue: &pb.MapValue{Fields: fields}}}
	default:
		return &pb.Value{ValueType: &pb.Value_NullValue{}}
	}
}

// EncodeMap encodes a map of host Values to wire fields, key by key.
func EncodeMap(m map[string]Value) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(m))
	for k, v := range m {
		out[k] = Encode(v)
	}
	return out
}

// Decode converts a wire Value into its host representation, using opts to
// decide int64 vs big.Int for the integer variant.
func Decode(pv *pb.Value, opts DecodeOptions) Value {
	if pv == nil {
		return Null()
	}
	switch t := pv.ValueType.(type) {
	case *pb.Value_NullValue:
		return Null()
	case *pb.Value_BooleanValue:
		return Bool(t.BooleanValue)
	case *pb.Value_IntegerValue:
		if opts.UseBigInt {
			return BigInt(big.NewInt(t.IntegerValue))
		}
		return Int64(t.IntegerValue)
	case *pb.Value_DoubleValue:
		return Double(t.DoubleValue)
	case *pb.Value_TimestampValue:
		return Timestamp(t.TimestampValue.AsTime())
	case *pb.Value_BytesValue:
		return Bytes(t.BytesValue)
	case *pb.Value_StringValue:
		return String(t.StringValue)
	case *pb.Value_ReferenceValue:
		return Reference(t.ReferenceValue)
	case *pb.Value_GeoPointValue:
		return Geo(GeoPoint{Latitude: t.GeoPointValue.GetLatitude(), Longitude: t.GeoPointValue.GetLongitude()})
	case *pb.Value_ArrayValue:
		vs := make([]Value, len(t.ArrayValue.GetValues()))
		for i, e := range t.ArrayValue.GetValues() {
			vs[i] = Decode(e, opts)
		}
		return Array(vs)
	case *pb.Value_MapValue:
		m := make(map[string]Value, len(t.MapValue.GetFields()))
		for k, fv := range t.MapValue.GetFields() {
			m[k] = Decode(fv, opts)
		}
		return Map(m)
	default:
		return Null()
	}
}

// DecodeMap converts wire fields into host Values.
func DecodeMap(fields map[string]*pb.Value, opts DecodeOptions) map[string]Value {
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = Decode(v, opts)
	}
	return out
}

// EncodeDecimalString renders an integer Value as the decimal string the
// wire uses for aggregation results and large-integer payloads.
func EncodeDecimalString(v Value) string {
	return strconv.FormatInt(v.intV, 10)
}

// EncodeTransform converts a Transform sentinel into its wire
// FieldTransform, anchored at the given field path.
func EncodeTransform(fieldPath string, t Transform) *pb.DocumentTransform_FieldTransform {
	ft := &pb.DocumentTransform_FieldTransform{FieldPath: fieldPath}
	switch t.Kind {
	case TransformServerTimestamp:
		ft.TransformType = &pb.DocumentTransform_FieldTransform_SetToServerValue{
			SetToServerValue: pb.DocumentTransform_REQUEST_TIME,
		}
	case TransformArrayUnion:
		ft.TransformType = &pb.DocumentTransform_FieldTransform_AppendMissingElements{
			AppendMissingElements: &pb.ArrayValue{Values: encodeSlice(t.Elements)},
		}
	case TransformArrayRemove:
		ft.TransformType = &pb.DocumentTransform_FieldTransform_RemoveAllFromArray{
			RemoveAllFromArray: &pb.ArrayValue{Values: encodeSlice(t.Elements)},
		}
	case TransformIncrement:
		ft.TransformType = &pb.DocumentTransform_FieldTransform_Increment{Increment: Encode(t.Operand)}
	case TransformMaximum:
		ft.TransformType = &pb.DocumentTransform_FieldTransform_Maximum{Maximum: Encode(t.Operand)}
	case TransformMinimum:
		ft.TransformType = &pb.DocumentTransform_FieldTransform_Minimum{Minimum: Encode(t.Operand)}
	case TransformDeleteField:
		// DeleteField never produces a FieldTransform: it is represented by
		// the path appearing in the update mask without a field value. The
		// caller (fswrite) is responsible for not calling EncodeTransform in
		// this case.
		return nil
	}
	return ft
}

func encodeSlice(vs []Value) []*pb.Value {
	out := make([]*pb.Value, len(vs))
	for i, v := range vs {
		out[i] = Encode(v)
	}
	return out
}

// DecodeAggregateInt widens an aggregation result's decimal-string wire
// integer to a native int64.
func DecodeAggregateInt(v *pb.Value) (int64, bool) {
	if iv, ok := v.GetValueType().(*pb.Value_IntegerValue); ok {
		return iv.IntegerValue, true
	}
	return 0, false
}
