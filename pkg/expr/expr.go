// Package expr decodes and evaluates serialized default-value expressions.
//
// Schemas carry defaults as opaque byte blobs; the codec hands them to an
// Evaluator at finish time. Only constant expressions are supported here:
// richer expression semantics belong to the query layer, not the storage
// codec.
package expr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/torvik/yggdb/pkg/codec"
)

// ErrBadExpression marks blobs that cannot be decoded into an expression.
var ErrBadExpression = errors.New("invalid expression encoding")

// Context carries evaluation state. Default-value expressions are evaluated
// against an empty context; the type exists so the signature does not change
// when variables are introduced.
type Context struct{}

// Expression is an evaluable default-value expression.
type Expression interface {
	Eval(ctx Context) (codec.Value, error)
}

// Constant is an expression that always yields the same value.
type Constant struct {
	val codec.Value
}

// NewConstant wraps a value as a constant expression.
func NewConstant(v codec.Value) *Constant { return &Constant{val: v} }

func (c *Constant) Eval(Context) (codec.Value, error) { return c.val, nil }

// Value kind tags in the serialized form.
const (
	tagNull byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagDate
	tagTime
	tagDateTime
	tagGeography
	tagDuration
	tagList
	tagSet
)

// Encode serializes a constant value so it can be stored as a field default.
func Encode(v codec.Value) ([]byte, error) {
	var out []byte
	return appendValue(out, v)
}

func appendValue(out []byte, v codec.Value) ([]byte, error) {
	switch v.Kind() {
	case codec.KindNull:
		return append(out, tagNull), nil
	case codec.KindBool:
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		return append(out, tagBool, b), nil
	case codec.KindInt:
		out = append(out, tagInt)
		return binary.LittleEndian.AppendUint64(out, uint64(v.Int())), nil
	case codec.KindFloat:
		out = append(out, tagFloat)
		return binary.LittleEndian.AppendUint64(out, math.Float64bits(v.Float())), nil
	case codec.KindString:
		out = append(out, tagString)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(v.Str())))
		return append(out, v.Str()...), nil
	case codec.KindDate:
		d := v.Date()
		out = append(out, tagDate)
		out = binary.LittleEndian.AppendUint16(out, uint16(d.Year))
		return append(out, byte(d.Month), byte(d.Day)), nil
	case codec.KindTime:
		tm := v.Time()
		out = append(out, tagTime, byte(tm.Hour), byte(tm.Minute), byte(tm.Sec))
		return binary.LittleEndian.AppendUint32(out, uint32(tm.Microsec)), nil
	case codec.KindDateTime:
		dt := v.DateTime()
		out = append(out, tagDateTime)
		out = binary.LittleEndian.AppendUint16(out, uint16(dt.Year))
		out = append(out, byte(dt.Month), byte(dt.Day), byte(dt.Hour), byte(dt.Minute), byte(dt.Sec))
		return binary.LittleEndian.AppendUint32(out, uint32(dt.Microsec)), nil
	case codec.KindGeography:
		g := v.Geography()
		out = append(out, tagGeography, byte(g.Shape))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(g.WKB)))
		return append(out, g.WKB...), nil
	case codec.KindDuration:
		d := v.Duration()
		out = append(out, tagDuration)
		out = binary.LittleEndian.AppendUint64(out, uint64(d.Seconds))
		out = binary.LittleEndian.AppendUint32(out, uint32(d.Microseconds))
		return binary.LittleEndian.AppendUint32(out, uint32(d.Months)), nil
	case codec.KindList, codec.KindSet:
		tag := tagList
		if v.Kind() == codec.KindSet {
			tag = tagSet
		}
		out = append(out, tag)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(v.Elems())))
		var err error
		for _, e := range v.Elems() {
			if out, err = appendValue(out, e); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: cannot encode %s", ErrBadExpression, v.Kind())
	}
}

// Decode parses a serialized expression blob.
func Decode(b []byte) (Expression, error) {
	v, rest, err := decodeValue(b)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadExpression, len(rest))
	}
	return NewConstant(v), nil
}

func decodeValue(b []byte) (codec.Value, []byte, error) {
	if len(b) == 0 {
		return codec.Value{}, nil, fmt.Errorf("%w: empty blob", ErrBadExpression)
	}
	tag, b := b[0], b[1:]
	switch tag {
	case tagNull:
		return codec.NewNull(), b, nil
	case tagBool:
		if len(b) < 1 {
			return codec.Value{}, nil, truncated(tag)
		}
		return codec.NewBool(b[0] != 0), b[1:], nil
	case tagInt:
		if len(b) < 8 {
			return codec.Value{}, nil, truncated(tag)
		}
		return codec.NewInt(int64(binary.LittleEndian.Uint64(b))), b[8:], nil
	case tagFloat:
		if len(b) < 8 {
			return codec.Value{}, nil, truncated(tag)
		}
		return codec.NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(b))), b[8:], nil
	case tagString:
		if len(b) < 4 {
			return codec.Value{}, nil, truncated(tag)
		}
		n := int(int32(binary.LittleEndian.Uint32(b)))
		b = b[4:]
		if n < 0 || len(b) < n {
			return codec.Value{}, nil, truncated(tag)
		}
		return codec.NewString(string(b[:n])), b[n:], nil
	case tagDate:
		if len(b) < 4 {
			return codec.Value{}, nil, truncated(tag)
		}
		d := codec.Date{
			Year:  int16(binary.LittleEndian.Uint16(b)),
			Month: int8(b[2]),
			Day:   int8(b[3]),
		}
		return codec.NewDate(d), b[4:], nil
	case tagTime:
		if len(b) < 7 {
			return codec.Value{}, nil, truncated(tag)
		}
		tm := codec.Time{
			Hour:     int8(b[0]),
			Minute:   int8(b[1]),
			Sec:      int8(b[2]),
			Microsec: int32(binary.LittleEndian.Uint32(b[3:])),
		}
		return codec.NewTime(tm), b[7:], nil
	case tagDateTime:
		if len(b) < 11 {
			return codec.Value{}, nil, truncated(tag)
		}
		dt := codec.DateTime{
			Year:     int16(binary.LittleEndian.Uint16(b)),
			Month:    int8(b[2]),
			Day:      int8(b[3]),
			Hour:     int8(b[4]),
			Minute:   int8(b[5]),
			Sec:      int8(b[6]),
			Microsec: int32(binary.LittleEndian.Uint32(b[7:])),
		}
		return codec.NewDateTime(dt), b[11:], nil
	case tagGeography:
		if len(b) < 5 {
			return codec.Value{}, nil, truncated(tag)
		}
		shape := codec.GeoShape(b[0])
		n := int(int32(binary.LittleEndian.Uint32(b[1:])))
		b = b[5:]
		if n < 0 || len(b) < n {
			return codec.Value{}, nil, truncated(tag)
		}
		g := codec.Geography{Shape: shape, WKB: append([]byte(nil), b[:n]...)}
		return codec.NewGeography(g), b[n:], nil
	case tagDuration:
		if len(b) < 16 {
			return codec.Value{}, nil, truncated(tag)
		}
		d := codec.Duration{
			Seconds:      int64(binary.LittleEndian.Uint64(b)),
			Microseconds: int32(binary.LittleEndian.Uint32(b[8:])),
			Months:       int32(binary.LittleEndian.Uint32(b[12:])),
		}
		return codec.NewDuration(d), b[16:], nil
	case tagList, tagSet:
		if len(b) < 4 {
			return codec.Value{}, nil, truncated(tag)
		}
		n := int(int32(binary.LittleEndian.Uint32(b)))
		b = b[4:]
		if n < 0 {
			return codec.Value{}, nil, truncated(tag)
		}
		elems := make([]codec.Value, 0, n)
		for i := 0; i < n; i++ {
			var (
				e   codec.Value
				err error
			)
			if e, b, err = decodeValue(b); err != nil {
				return codec.Value{}, nil, err
			}
			elems = append(elems, e)
		}
		if tag == tagSet {
			return codec.NewSet(elems), b, nil
		}
		return codec.NewList(elems), b, nil
	default:
		return codec.Value{}, nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrBadExpression, tag)
	}
}

func truncated(tag byte) error {
	return fmt.Errorf("%w: truncated payload for tag 0x%02x", ErrBadExpression, tag)
}

// Evaluator plugs expression evaluation into the row writer as its
// default resolver.
type Evaluator struct{}

// NewEvaluator returns an evaluator for default-value blobs.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Resolve decodes a blob and evaluates it against an empty context.
func (e *Evaluator) Resolve(blob []byte) (codec.Value, error) {
	ex, err := Decode(blob)
	if err != nil {
		return codec.Value{}, err
	}
	return ex.Eval(Context{})
}

// MustEncode is Encode for values known valid at compile time, convenient
// when declaring schemas.
func MustEncode(v codec.Value) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}
