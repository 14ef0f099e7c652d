package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the runtime type of a Value. The set of kinds is closed:
// every setter dispatches over it exhaustively, so adding a kind without
// handling it in the writer is a compile-visible omission.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindTime
	KindDateTime
	KindGeography
	KindDuration
	KindList
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindDateTime:
		return "datetime"
	case KindGeography:
		return "geography"
	case KindDuration:
		return "duration"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Date is a calendar date without a time component.
type Date struct {
	Year  int16
	Month int8
	Day   int8
}

// Time is a wall-clock time with microsecond precision.
type Time struct {
	Hour     int8
	Minute   int8
	Sec      int8
	Microsec int32
}

// DateTime combines Date and Time.
type DateTime struct {
	Year     int16
	Month    int8
	Day      int8
	Hour     int8
	Minute   int8
	Sec      int8
	Microsec int32
}

// Duration is a calendar-aware duration: months are kept separate because
// they have no fixed length in seconds.
type Duration struct {
	Seconds      int64
	Microseconds int32
	Months       int32
}

// GeoShape restricts which geometry a geography field accepts.
type GeoShape uint8

const (
	ShapeAny GeoShape = iota
	ShapePoint
	ShapeLineString
	ShapePolygon
)

func (s GeoShape) String() string {
	switch s {
	case ShapeAny:
		return "any"
	case ShapePoint:
		return "point"
	case ShapeLineString:
		return "linestring"
	case ShapePolygon:
		return "polygon"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// Geography carries a pre-serialized WKB geometry plus its shape tag.
// The codec stores the WKB bytes verbatim; it never parses coordinates.
type Geography struct {
	Shape GeoShape
	WKB   []byte
}

// Value is a tagged variant over the supported property kinds.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	d     Date
	t     Time
	dt    DateTime
	geo   Geography
	dur   Duration
	elems []Value
}

func NewNull() Value                 { return Value{kind: KindNull} }
func NewBool(v bool) Value           { return Value{kind: KindBool, b: v} }
func NewInt(v int64) Value           { return Value{kind: KindInt, i: v} }
func NewFloat(v float64) Value       { return Value{kind: KindFloat, f: v} }
func NewString(v string) Value       { return Value{kind: KindString, s: v} }
func NewDate(v Date) Value           { return Value{kind: KindDate, d: v} }
func NewTime(v Time) Value           { return Value{kind: KindTime, t: v} }
func NewDateTime(v DateTime) Value   { return Value{kind: KindDateTime, dt: v} }
func NewGeography(v Geography) Value { return Value{kind: KindGeography, geo: v} }
func NewDuration(v Duration) Value   { return Value{kind: KindDuration, dur: v} }
func NewList(elems []Value) Value    { return Value{kind: KindList, elems: elems} }
func NewSet(elems []Value) Value     { return Value{kind: KindSet, elems: elems} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() bool           { return v.b }
func (v Value) Int() int64           { return v.i }
func (v Value) Float() float64       { return v.f }
func (v Value) Str() string          { return v.s }
func (v Value) Date() Date           { return v.d }
func (v Value) Time() Time           { return v.t }
func (v Value) DateTime() DateTime   { return v.dt }
func (v Value) Geography() Geography { return v.geo }
func (v Value) Duration() Duration   { return v.dur }
func (v Value) Elems() []Value       { return v.elems }

// Compare orders two values when a total order exists between their kinds.
// Int and Float compare numerically against each other; strings compare
// lexicographically. The second return is false for unordered pairs.
func (v Value) Compare(o Value) (int, bool) {
	switch {
	case v.kind == KindInt && o.kind == KindInt:
		return compareInt64(v.i, o.i), true
	case v.kind == KindFloat && o.kind == KindFloat:
		return compareFloat64(v.f, o.f), true
	case v.kind == KindInt && o.kind == KindFloat:
		return compareFloat64(float64(v.i), o.f), true
	case v.kind == KindFloat && o.kind == KindInt:
		return compareFloat64(v.f, float64(o.i)), true
	case v.kind == KindString && o.kind == KindString:
		return strings.Compare(v.s, o.s), true
	case v.kind == KindBool && o.kind == KindBool:
		return compareBool(v.b, o.b), true
	default:
		return 0, false
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// dedupKey produces an equality key for set membership. Only the primitive
// kinds that can appear as set elements need one.
func (v Value) dedupKey() string {
	switch v.kind {
	case KindInt:
		return "i" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		return "f" + strconv.FormatFloat(v.f, 'x', -1, 64)
	case KindString:
		return "s" + v.s
	default:
		return v.kind.String()
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindDate:
		return fmt.Sprintf("%04d-%02d-%02d", v.d.Year, v.d.Month, v.d.Day)
	case KindTime:
		return fmt.Sprintf("%02d:%02d:%02d.%06d", v.t.Hour, v.t.Minute, v.t.Sec, v.t.Microsec)
	case KindDateTime:
		return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%06d",
			v.dt.Year, v.dt.Month, v.dt.Day, v.dt.Hour, v.dt.Minute, v.dt.Sec, v.dt.Microsec)
	case KindGeography:
		return fmt.Sprintf("geography(%s, %d bytes)", v.geo.Shape, len(v.geo.WKB))
	case KindDuration:
		return fmt.Sprintf("duration(%ds %dus %dmo)", v.dur.Seconds, v.dur.Microseconds, v.dur.Months)
	case KindList, KindSet:
		parts := make([]string, len(v.elems))
		for i, e := range v.elems {
			parts[i] = e.String()
		}
		open, close := "[", "]"
		if v.kind == KindSet {
			open, close = "{", "}"
		}
		return open + strings.Join(parts, ", ") + close
	default:
		return v.kind.String()
	}
}
