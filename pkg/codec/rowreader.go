package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RowReader decodes an encoded row against the schema it was written under.
// The buffer is read-only; a reader can be consulted concurrently.
type RowReader struct {
	schema       *Schema
	buf          []byte // row bytes without the trailer
	headerLen    int
	numNullBytes int
	timestamp    int64
}

// NewRowReader validates the header and version before any field is read.
// A version that differs from the schema's is schema/data drift and the
// row is rejected as corrupt.
func NewRowReader(schema *Schema, encoded []byte) (*RowReader, error) {
	if len(encoded) < 1+trailerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a row", ErrCorruptRow, len(encoded))
	}
	buf := encoded[:len(encoded)-trailerSize]
	if buf[0]&headerSigMask != headerSig {
		return nil, fmt.Errorf("%w: bad header byte 0x%02x", ErrCorruptRow, buf[0])
	}
	verBytes := int(buf[0] & headerVerMask)
	if len(buf) < 1+verBytes {
		return nil, fmt.Errorf("%w: truncated version", ErrCorruptRow)
	}
	var ver uint64
	for i := verBytes - 1; i >= 0; i-- {
		ver = ver<<8 | uint64(buf[1+i])
	}
	if ver != schema.Version() {
		return nil, fmt.Errorf("%w: row encoded under schema version %d, schema reports %d",
			ErrCorruptRow, ver, schema.Version())
	}

	r := &RowReader{
		schema:       schema,
		buf:          buf,
		headerLen:    1 + verBytes,
		numNullBytes: (schema.NumNullable() + 7) / 8,
		timestamp:    int64(binary.LittleEndian.Uint64(encoded[len(encoded)-trailerSize:])),
	}
	if len(buf) < r.headerLen+r.numNullBytes+schema.Size() {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the fixed region", ErrCorruptRow, len(buf))
	}
	return r, nil
}

// Schema returns the schema the row was decoded against.
func (r *RowReader) Schema() *Schema { return r.schema }

// NumFields returns the number of fields in the row.
func (r *RowReader) NumFields() int { return r.schema.NumFields() }

// Timestamp returns the microsecond write timestamp from the row trailer.
func (r *RowReader) Timestamp() int64 { return r.timestamp }

func (r *RowReader) isNull(f *Field) bool {
	if !f.Nullable {
		return false
	}
	return r.buf[r.headerLen+f.NullPos>>3]&orBits[f.NullPos&7] != 0
}

// ValueByName decodes the named field.
func (r *RowReader) ValueByName(name string) (Value, error) {
	index := r.schema.FieldIndex(name)
	if index < 0 {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return r.ValueByIndex(index)
}

// ValueByIndex decodes the field at index. Nullable fields consult the null
// bit before the fixed-region bytes, which may hold stale data.
func (r *RowReader) ValueByIndex(index int) (Value, error) {
	f := r.schema.Field(index)
	if f == nil {
		return Value{}, fmt.Errorf("%w: index %d", ErrUnknownField, index)
	}
	if r.isNull(f) {
		return NewNull(), nil
	}
	off := r.headerLen + r.numNullBytes + f.Offset
	switch f.Type {
	case TypeBool:
		return NewBool(r.buf[off] != 0), nil
	case TypeInt8:
		return NewInt(int64(int8(r.buf[off]))), nil
	case TypeInt16:
		return NewInt(int64(int16(binary.LittleEndian.Uint16(r.buf[off:])))), nil
	case TypeInt32:
		return NewInt(int64(int32(binary.LittleEndian.Uint32(r.buf[off:])))), nil
	case TypeInt64, TypeTimestamp32, TypeTimestamp64:
		return NewInt(int64(binary.LittleEndian.Uint64(r.buf[off:]))), nil
	case TypeFloat:
		return NewFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(r.buf[off:])))), nil
	case TypeDouble:
		return NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(r.buf[off:]))), nil
	case TypeFixedString:
		b := r.buf[off : off+f.Size]
		// Strip the zero padding of shorter values.
		n := len(b)
		for n > 0 && b[n-1] == 0 {
			n--
		}
		return NewString(string(b[:n])), nil
	case TypeString:
		b, err := r.varBytes(f, off)
		if err != nil {
			return Value{}, err
		}
		return NewString(string(b)), nil
	case TypeGeography:
		b, err := r.varBytes(f, off)
		if err != nil {
			return Value{}, err
		}
		g := Geography{Shape: f.Shape, WKB: append([]byte(nil), b...)}
		if shape, ok := wkbShape(b); ok {
			g.Shape = shape
		}
		return NewGeography(g), nil
	case TypeDate:
		return NewDate(Date{
			Year:  int16(binary.LittleEndian.Uint16(r.buf[off:])),
			Month: int8(r.buf[off+2]),
			Day:   int8(r.buf[off+3]),
		}), nil
	case TypeTime:
		return NewTime(Time{
			Hour:     int8(r.buf[off]),
			Minute:   int8(r.buf[off+1]),
			Sec:      int8(r.buf[off+2]),
			Microsec: int32(binary.LittleEndian.Uint32(r.buf[off+3:])),
		}), nil
	case TypeDateTime:
		return NewDateTime(DateTime{
			Year:     int16(binary.LittleEndian.Uint16(r.buf[off:])),
			Month:    int8(r.buf[off+2]),
			Day:      int8(r.buf[off+3]),
			Hour:     int8(r.buf[off+4]),
			Minute:   int8(r.buf[off+5]),
			Sec:      int8(r.buf[off+6]),
			Microsec: int32(binary.LittleEndian.Uint32(r.buf[off+7:])),
		}), nil
	case TypeDuration:
		return NewDuration(Duration{
			Seconds:      int64(binary.LittleEndian.Uint64(r.buf[off:])),
			Microseconds: int32(binary.LittleEndian.Uint32(r.buf[off+8:])),
			Months:       int32(binary.LittleEndian.Uint32(r.buf[off+12:])),
		}), nil
	case TypeListString, TypeListInt, TypeListFloat,
		TypeSetString, TypeSetInt, TypeSetFloat:
		elems, err := r.containerElems(f, off)
		if err != nil {
			return Value{}, err
		}
		if f.Type.isSet() {
			return NewSet(elems), nil
		}
		return NewList(elems), nil
	default:
		return Value{}, fmt.Errorf("%w: field %q has unsupported type %s", ErrBadSchema, f.Name, f.Type)
	}
}

func (r *RowReader) varBytes(f *Field, slot int) ([]byte, error) {
	off := int(int32(binary.LittleEndian.Uint32(r.buf[slot:])))
	n := int(int32(binary.LittleEndian.Uint32(r.buf[slot+4:])))
	if n == 0 {
		return nil, nil
	}
	if off <= 0 || n < 0 || off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: field %q payload [%d:%d] exceeds buffer",
			ErrCorruptRow, f.Name, off, off+n)
	}
	return r.buf[off : off+n], nil
}

func (r *RowReader) containerElems(f *Field, slot int) ([]Value, error) {
	off := int(int32(binary.LittleEndian.Uint32(r.buf[slot:])))
	count := int(int32(binary.LittleEndian.Uint32(r.buf[slot+4:])))
	if off == 0 && count == 0 {
		return nil, nil
	}
	if off <= 0 || off+4 > len(r.buf) {
		return nil, fmt.Errorf("%w: field %q container offset %d exceeds buffer", ErrCorruptRow, f.Name, off)
	}
	// The payload leads with its own count; the slot copy must agree.
	payloadCount := int(int32(binary.LittleEndian.Uint32(r.buf[off:])))
	if payloadCount != count {
		return nil, fmt.Errorf("%w: field %q count mismatch: slot %d, payload %d",
			ErrCorruptRow, f.Name, count, payloadCount)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: field %q has negative element count %d", ErrCorruptRow, f.Name, count)
	}

	elems := make([]Value, 0, count)
	pos := off + 4
	for i := 0; i < count; i++ {
		switch f.Type.elemKind() {
		case KindString:
			if pos+4 > len(r.buf) {
				return nil, fmt.Errorf("%w: field %q element %d exceeds buffer", ErrCorruptRow, f.Name, i)
			}
			n := int(int32(binary.LittleEndian.Uint32(r.buf[pos:])))
			pos += 4
			if n < 0 || pos+n > len(r.buf) {
				return nil, fmt.Errorf("%w: field %q element %d exceeds buffer", ErrCorruptRow, f.Name, i)
			}
			elems = append(elems, NewString(string(r.buf[pos:pos+n])))
			pos += n
		case KindInt:
			if pos+4 > len(r.buf) {
				return nil, fmt.Errorf("%w: field %q element %d exceeds buffer", ErrCorruptRow, f.Name, i)
			}
			elems = append(elems, NewInt(int64(int32(binary.LittleEndian.Uint32(r.buf[pos:])))))
			pos += 4
		case KindFloat:
			if pos+4 > len(r.buf) {
				return nil, fmt.Errorf("%w: field %q element %d exceeds buffer", ErrCorruptRow, f.Name, i)
			}
			elems = append(elems, NewFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(r.buf[pos:])))))
			pos += 4
		}
	}
	return elems, nil
}

// wkbShape peeks at a WKB header (byte order + uint32 geometry type) to
// recover the geometry shape of a stored payload.
func wkbShape(wkb []byte) (GeoShape, bool) {
	if len(wkb) < 5 {
		return ShapeAny, false
	}
	var typ uint32
	switch wkb[0] {
	case 0: // big-endian
		typ = binary.BigEndian.Uint32(wkb[1:5])
	case 1: // little-endian
		typ = binary.LittleEndian.Uint32(wkb[1:5])
	default:
		return ShapeAny, false
	}
	switch typ {
	case 1:
		return ShapePoint, true
	case 2:
		return ShapeLineString, true
	case 3:
		return ShapePolygon, true
	default:
		return ShapeAny, false
	}
}
