// Package fsvalue implements the bidirectional mapping between host-language
// values and the wire Value sum type, plus the field-transform
// sentinels that never produce a Value but instead contribute a
// DocumentTransform alongside a write.
package fsvalue

import (
	"math"
	"math/big"
	"sort"
	"time"
)

// Kind is the tag of the Value sum type.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindDouble
	KindTimestamp
	KindBytes
	KindString
	KindReference
	KindGeoPoint
	KindArray
	KindMap
)

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude, Longitude float64
}

// Value is the closed sum type: exactly one of
// {null, bool, int64, double, timestamp, bytes, string, reference,
// geopoint, array(Value), map(string->Value)}.
//
// Integers may decode as either a native int64 or an arbitrary-precision
// *big.Int depending on the process-scoped UseBigInt decode option; BigInt
// is only populated when that option was set and the wire value did not fit
// (or was requested to be represented) as a big integer.
type Value struct {
	kind      Kind
	boolV     bool
	intV      int64
	bigIntV   *big.Int
	doubleV   float64
	timeV     time.Time
	bytesV    []byte
	stringV   string
	refV      string
	geoV      GeoPoint
	arrV      []Value
	mapV      map[string]Value
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, boolV: b} }
func Int64(i int64) Value        { return Value{kind: KindInt64, intV: i} }
func BigInt(i *big.Int) Value    { return Value{kind: KindInt64, intV: i.Int64(), bigIntV: i} }
func Double(f float64) Value     { return Value{kind: KindDouble, doubleV: f} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, timeV: t.UTC()} }
func Bytes(b []byte) Value       { return Value{kind: KindBytes, bytesV: append([]byte(nil), b...)} }
func String(s string) Value      { return Value{kind: KindString, stringV: s} }
func Reference(path string) Value { return Value{kind: KindReference, refV: path} }
func Geo(g GeoPoint) Value        { return Value{kind: KindGeoPoint, geoV: g} }
func Array(vs []Value) Value      { return Value{kind: KindArray, arrV: append([]Value(nil), vs...)} }

// Map returns a present map Value. An empty (but non-nil) input map yields a
// present-but-empty map Value: maps whose entries were all transforms still
// decode and encode as present-but-empty.
func Map(m map[string]Value) Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return Value{kind: KindMap, mapV: out}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Bool() bool   { return v.boolV }
func (v Value) Int64() int64 { return v.intV }
func (v Value) BigInt() *big.Int {
	if v.bigIntV != nil {
		return v.bigIntV
	}
	return big.NewInt(v.intV)
}
func (v Value) Double() float64      { return v.doubleV }
func (v Value) Time() time.Time      { return v.timeV }
func (v Value) BytesValue() []byte   { return append([]byte(nil), v.bytesV...) }
func (v Value) StringValue() string  { return v.stringV }
func (v Value) ReferenceValue() string { return v.refV }
func (v Value) GeoPointValue() GeoPoint { return v.geoV }
func (v Value) ArrayValue() []Value {
	return append([]Value(nil), v.arrV...)
}
func (v Value) MapValue() map[string]Value {
	out := make(map[string]Value, len(v.mapV))
	for k, mv := range v.mapV {
		out[k] = mv
	}
	return out
}

// IsNaN reports whether this is the distinguished NaN double.
func (v Value) IsNaN() bool {
	return v.kind == KindDouble && math.IsNaN(v.doubleV)
}

// Equal reports structural equality. Timestamps compare on seconds+nanos;
// NaN equals NaN for this purpose, mirroring Firestore's
// canonical-order treatment of NaN as a regular (if special) number.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolV == o.boolV
	case KindInt64:
		return v.intV == o.intV
	case KindDouble:
		if v.IsNaN() && o.IsNaN() {
			return true
		}
		return v.doubleV == o.doubleV
	case KindTimestamp:
		return v.timeV.Equal(o.timeV)
	case KindBytes:
		if len(v.bytesV) != len(o.bytesV) {
			return false
		}
		for i := range v.bytesV {
			if v.bytesV[i] != o.bytesV[i] {
				return false
			}
		}
		return true
	case KindString:
		return v.stringV == o.stringV
	case KindReference:
		return v.refV == o.refV
	case KindGeoPoint:
		return v.geoV == o.geoV
	case KindArray:
		if len(v.arrV) != len(o.arrV) {
			return false
		}
		for i := range v.arrV {
			if !v.arrV[i].Equal(o.arrV[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.mapV) != len(o.mapV) {
			return false
		}
		for k, mv := range v.mapV {
			ov, ok := o.mapV[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// sortedKeys is a small helper used by the encoder/tests to make field
// iteration order deterministic rather than relying on Go's randomized map
// order.
func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TransformKind enumerates the field-transform sentinels.
type TransformKind int

const (
	TransformServerTimestamp TransformKind = iota
	TransformArrayUnion
	TransformArrayRemove
	TransformIncrement
	TransformMaximum
	TransformMinimum
	TransformDeleteField
)

// Transform is a sentinel host value that never encodes to a Value; it
// instead contributes a FieldTransform to the write's updateTransforms.
type Transform struct {
	Kind     TransformKind
	Elements []Value // ArrayUnion / ArrayRemove operands
	Operand  Value   // Increment / Maximum / Minimum operand
}

func ServerTimestamp() Transform           { return Transform{Kind: TransformServerTimestamp} }
func ArrayUnion(vs ...Value) Transform     { return Transform{Kind: TransformArrayUnion, Elements: vs} }
func ArrayRemove(vs ...Value) Transform    { return Transform{Kind: TransformArrayRemove, Elements: vs} }
func Increment(by Value) Transform         { return Transform{Kind: TransformIncrement, Operand: by} }
func Maximum(of Value) Transform           { return Transform{Kind: TransformMaximum, Operand: of} }
func Minimum(of Value) Transform           { return Transform{Kind: TransformMinimum, Operand: of} }
func DeleteField() Transform               { return Transform{Kind: TransformDeleteField} }
