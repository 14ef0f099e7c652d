package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// Header byte layout: the top five bits are the format signature (0b00001),
// the low three bits hold the number of little-endian schema version bytes
// that follow. Three bits cap the version at 2^56-1.
const (
	headerSig     = 0x08
	headerSigMask = 0xF8
	headerVerMask = 0x07
	maxVerBytes   = 7

	trailerSize = 8 // little-endian microsecond timestamp appended at Finish
)

// maxTimestamp bounds 64-bit timestamp fields; beyond it a nanosecond
// conversion overflows int64.
const maxTimestamp = math.MaxInt64 / 1000000000

// DefaultResolver evaluates a serialized default-value expression into a
// Value. The codec treats expression semantics as an external capability;
// pkg/expr provides the standard implementation.
type DefaultResolver interface {
	Resolve(expr []byte) (Value, error)
}

// RowWriter builds one encoded row field by field against a fixed schema.
// It is not safe for concurrent use; build one writer per row.
type RowWriter struct {
	schema *Schema

	// Resolver supplies default values for fields left unset at Finish
	// time. It may stay nil for schemas without default expressions.
	Resolver DefaultResolver

	buf          []byte
	headerLen    int
	numNullBytes int
	approxVarLen int
	isSet        []bool
	overflow     [][]byte
	outOfSpace   bool
	compacted    bool
	finished     bool
}

// NewRowWriter starts an empty row under the given schema. The header,
// null bitmap and fixed region are laid out immediately; variable-length
// payloads grow off the end as fields are set.
func NewRowWriter(schema *Schema) (*RowWriter, error) {
	verBytes := 0
	for v := schema.Version(); v > 0; v >>= 8 {
		verBytes++
	}
	if verBytes > maxVerBytes {
		return nil, fmt.Errorf("%w: schema version %d needs more than %d bytes",
			ErrBadSchema, schema.Version(), maxVerBytes)
	}

	w := &RowWriter{
		schema:       schema,
		headerLen:    1 + verBytes,
		numNullBytes: (schema.NumNullable() + 7) / 8,
		isSet:        make([]bool, schema.NumFields()),
	}

	fixedEnd := w.headerLen + w.numNullBytes + schema.Size()
	w.buf = make([]byte, fixedEnd, fixedEnd+1024)
	w.buf[0] = headerSig | byte(verBytes)
	for i, v := 0, schema.Version(); i < verBytes; i++ {
		w.buf[1+i] = byte(v)
		v >>= 8
	}
	return w, nil
}

// RowWriterFromEncoded seeds a writer from an already encoded row so single
// fields can be rewritten. The trailing timestamp is stripped; Finish
// appends a fresh one. The embedded schema version must match the provided
// schema exactly: a mismatch means schema/data drift and the row is
// rejected as corrupt rather than reinterpreted.
func RowWriterFromEncoded(schema *Schema, encoded []byte) (*RowWriter, error) {
	if len(encoded) < 1+trailerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a row", ErrCorruptRow, len(encoded))
	}
	buf := make([]byte, len(encoded)-trailerSize)
	copy(buf, encoded)

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

	w := &RowWriter{
		schema:       schema,
		buf:          buf,
		headerLen:    1 + verBytes,
		numNullBytes: (schema.NumNullable() + 7) / 8,
		isSet:        make([]bool, schema.NumFields()),
	}
	if len(buf) < w.fixedEnd() {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the fixed region", ErrCorruptRow, len(buf))
	}
	w.approxVarLen = len(buf) - w.fixedEnd()
	for i := range w.isSet {
		w.isSet[i] = true
	}
	return w, nil
}

// RowWriterFromReader seeds a writer by copying every field of a decoded
// row, value by value, through the normal setters.
func RowWriterFromReader(r *RowReader) (*RowWriter, error) {
	w, err := NewRowWriter(r.Schema())
	if err != nil {
		return nil, err
	}
	for i := 0; i < r.NumFields(); i++ {
		v, err := r.ValueByIndex(i)
		if err != nil {
			return nil, err
		}
		if err := w.SetValue(i, v); err != nil {
			return nil, fmt.Errorf("field %q: %w", r.Schema().Field(i).Name, err)
		}
	}
	return w, nil
}

// Schema returns the schema the writer encodes under.
func (w *RowWriter) Schema() *Schema { return w.schema }

func (w *RowWriter) fixedEnd() int {
	return w.headerLen + w.numNullBytes + w.schema.Size()
}

func (w *RowWriter) fieldOffset(f *Field) int {
	return w.headerLen + w.numNullBytes + f.Offset
}

// Null bits are MSB-first within each bitmap byte.
var (
	orBits  = [8]byte{0x80, 0x40, 0x20, 0x10, 0x08, 0x04, 0x02, 0x01}
	andBits = [8]byte{0x7F, 0xBF, 0xDF, 0xEF, 0xF7, 0xFB, 0xFD, 0xFE}
)

func (w *RowWriter) setNullBit(pos int) {
	w.buf[w.headerLen+pos>>3] |= orBits[pos&7]
}

func (w *RowWriter) clearNullBit(pos int) {
	w.buf[w.headerLen+pos>>3] &= andBits[pos&7]
}

func (w *RowWriter) checkNullBit(pos int) bool {
	return w.buf[w.headerLen+pos>>3]&orBits[pos&7] != 0
}

func (w *RowWriter) markSet(index int, f *Field) {
	if f.Nullable {
		w.clearNullBit(f.NullPos)
	}
	w.isSet[index] = true
}

// SetValue writes a value into the field at index, dispatching on the
// value's runtime kind. The fields may be set in any order and more than
// once; re-setting a variable-length field routes the new payload through
// the overflow arena until Finish compacts the buffer.
func (w *RowWriter) SetValue(index int, v Value) error {
	if w.finished {
		return ErrAlreadyFinished
	}
	f := w.schema.Field(index)
	if f == nil {
		return fmt.Errorf("%w: index %d", ErrUnknownField, index)
	}
	switch v.Kind() {
	case KindNull:
		return w.SetNull(index)
	case KindBool:
		return w.writeBool(index, f, v.Bool())
	case KindInt:
		return w.writeInt(index, f, v.Int())
	case KindFloat:
		return w.writeFloat(index, f, v.Float())
	case KindString:
		return w.writeBytes(index, f, []byte(v.Str()), false)
	case KindDate:
		return w.writeDate(index, f, v.Date())
	case KindTime:
		return w.writeTime(index, f, v.Time())
	case KindDateTime:
		return w.writeDateTime(index, f, v.DateTime())
	case KindGeography:
		return w.writeGeography(index, f, v.Geography())
	case KindDuration:
		return w.writeDuration(index, f, v.Duration())
	case KindList:
		return w.writeContainer(index, f, v.Elems(), false)
	case KindSet:
		return w.writeContainer(index, f, v.Elems(), true)
	default:
		return fmt.Errorf("%w: cannot store %s", ErrTypeMismatch, v.Kind())
	}
}

// SetValueByName is SetValue addressed by field name.
func (w *RowWriter) SetValueByName(name string, v Value) error {
	index := w.schema.FieldIndex(name)
	if index < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return w.SetValue(index, v)
}

// SetNull marks the field logically null. The fixed-region bytes are left
// as they are; readers must consult the null bit first.
func (w *RowWriter) SetNull(index int) error {
	if w.finished {
		return ErrAlreadyFinished
	}
	f := w.schema.Field(index)
	if f == nil {
		return fmt.Errorf("%w: index %d", ErrUnknownField, index)
	}
	if !f.Nullable {
		return fmt.Errorf("%w: %s", ErrNotNullable, f.Name)
	}
	w.setNullBit(f.NullPos)
	w.isSet[index] = true
	return nil
}

// SetNullByName is SetNull addressed by field name.
func (w *RowWriter) SetNullByName(name string) error {
	index := w.schema.FieldIndex(name)
	if index < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return w.SetNull(index)
}

func (w *RowWriter) writeBool(index int, f *Field, v bool) error {
	off := w.fieldOffset(f)
	var b byte
	if v {
		b = 1
	}
	switch f.Type {
	case TypeBool, TypeInt8:
		w.buf[off] = b
	case TypeInt16, TypeInt32, TypeInt64:
		for i := 1; i < f.Size; i++ {
			w.buf[off+i] = 0
		}
		w.buf[off] = b
	default:
		return fmt.Errorf("%w: bool into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	w.markSet(index, f)
	return nil
}

func (w *RowWriter) writeInt(index int, f *Field, v int64) error {
	off := w.fieldOffset(f)
	switch f.Type {
	case TypeBool:
		if v == 0 {
			w.buf[off] = 0
		} else {
			w.buf[off] = 1
		}
	case TypeInt8:
		if v > math.MaxInt8 || v < math.MinInt8 {
			return fmt.Errorf("%w: %d does not fit int8 field %s", ErrOutOfRange, v, f.Name)
		}
		w.buf[off] = byte(int8(v))
	case TypeInt16:
		if v > math.MaxInt16 || v < math.MinInt16 {
			return fmt.Errorf("%w: %d does not fit int16 field %s", ErrOutOfRange, v, f.Name)
		}
		binary.LittleEndian.PutUint16(w.buf[off:], uint16(int16(v)))
	case TypeInt32:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return fmt.Errorf("%w: %d does not fit int32 field %s", ErrOutOfRange, v, f.Name)
		}
		binary.LittleEndian.PutUint32(w.buf[off:], uint32(int32(v)))
	case TypeInt64:
		binary.LittleEndian.PutUint64(w.buf[off:], uint64(v))
	case TypeTimestamp32:
		// 32-bit timestamps only reach 2038-01-19.
		if v < 0 || v > math.MaxInt32 {
			return fmt.Errorf("%w: %d is not a 32-bit timestamp", ErrOutOfRange, v)
		}
		binary.LittleEndian.PutUint64(w.buf[off:], uint64(v))
	case TypeTimestamp64:
		if v < 0 || v > maxTimestamp {
			return fmt.Errorf("%w: %d is not a valid timestamp", ErrOutOfRange, v)
		}
		binary.LittleEndian.PutUint64(w.buf[off:], uint64(v))
	case TypeFloat:
		binary.LittleEndian.PutUint32(w.buf[off:], math.Float32bits(float32(v)))
	case TypeDouble:
		binary.LittleEndian.PutUint64(w.buf[off:], math.Float64bits(float64(v)))
	default:
		return fmt.Errorf("%w: int into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	w.markSet(index, f)
	return nil
}

func (w *RowWriter) writeFloat(index int, f *Field, v float64) error {
	off := w.fieldOffset(f)
	switch f.Type {
	case TypeInt8:
		if v > math.MaxInt8 || v < math.MinInt8 {
			return fmt.Errorf("%w: %g does not fit int8 field %s", ErrOutOfRange, v, f.Name)
		}
		w.buf[off] = byte(int8(math.Round(v)))
	case TypeInt16:
		if v > math.MaxInt16 || v < math.MinInt16 {
			return fmt.Errorf("%w: %g does not fit int16 field %s", ErrOutOfRange, v, f.Name)
		}
		binary.LittleEndian.PutUint16(w.buf[off:], uint16(int16(math.Round(v))))
	case TypeInt32:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return fmt.Errorf("%w: %g does not fit int32 field %s", ErrOutOfRange, v, f.Name)
		}
		binary.LittleEndian.PutUint32(w.buf[off:], uint32(int32(math.Round(v))))
	case TypeInt64:
		if v > float64(math.MaxInt64) || v < float64(math.MinInt64) {
			return fmt.Errorf("%w: %g does not fit int64 field %s", ErrOutOfRange, v, f.Name)
		}
		binary.LittleEndian.PutUint64(w.buf[off:], uint64(int64(math.Round(v))))
	case TypeFloat:
		if v > math.MaxFloat32 || v < -math.MaxFloat32 {
			return fmt.Errorf("%w: %g does not fit float field %s", ErrOutOfRange, v, f.Name)
		}
		binary.LittleEndian.PutUint32(w.buf[off:], math.Float32bits(float32(v)))
	case TypeDouble:
		binary.LittleEndian.PutUint64(w.buf[off:], math.Float64bits(v))
	default:
		return fmt.Errorf("%w: float into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	w.markSet(index, f)
	return nil
}

func (w *RowWriter) writeBytes(index int, f *Field, b []byte, isWKB bool) error {
	off := w.fieldOffset(f)
	switch f.Type {
	case TypeGeography:
		// Geography payloads must arrive pre-serialized as WKB.
		if !isWKB {
			return fmt.Errorf("%w: geography field %s needs a WKB payload", ErrTypeMismatch, f.Name)
		}
		fallthrough
	case TypeString:
		if w.isSet[index] {
			// The old payload may sit under other fields' offsets, so it
			// cannot be reused in place. Route every write from here on
			// through the overflow arena and reconcile at Finish.
			w.outOfSpace = true
		}
		var strOffset, strLen int32
		if w.outOfSpace {
			w.overflow = append(w.overflow, append([]byte(nil), b...))
			strOffset = 0
			// The length slot holds the arena index until compaction.
			strLen = int32(len(w.overflow) - 1)
		} else {
			strOffset = int32(len(w.buf))
			strLen = int32(len(b))
			w.buf = append(w.buf, b...)
		}
		binary.LittleEndian.PutUint32(w.buf[off:], uint32(strOffset))
		binary.LittleEndian.PutUint32(w.buf[off+4:], uint32(strLen))
		w.approxVarLen += len(b)
	case TypeFixedString:
		n := len(b)
		if n > f.Size {
			n = utf8CutSize(b, f.Size)
		}
		copy(w.buf[off:], b[:n])
		for i := n; i < f.Size; i++ {
			w.buf[off+i] = 0
		}
	default:
		return fmt.Errorf("%w: string into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	w.markSet(index, f)
	return nil
}

func (w *RowWriter) writeGeography(index int, f *Field, g Geography) error {
	if f.Type != TypeGeography {
		return fmt.Errorf("%w: geography into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	if f.Shape != ShapeAny && f.Shape != g.Shape {
		return fmt.Errorf("%w: field %s expects %s geometry, got %s",
			ErrTypeMismatch, f.Name, f.Shape, g.Shape)
	}
	return w.writeBytes(index, f, g.WKB, true)
}

func (w *RowWriter) writeDate(index int, f *Field, v Date) error {
	if f.Type != TypeDate {
		return fmt.Errorf("%w: date into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	off := w.fieldOffset(f)
	binary.LittleEndian.PutUint16(w.buf[off:], uint16(v.Year))
	w.buf[off+2] = byte(v.Month)
	w.buf[off+3] = byte(v.Day)
	w.markSet(index, f)
	return nil
}

func (w *RowWriter) writeTime(index int, f *Field, v Time) error {
	if f.Type != TypeTime {
		return fmt.Errorf("%w: time into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	off := w.fieldOffset(f)
	w.buf[off] = byte(v.Hour)
	w.buf[off+1] = byte(v.Minute)
	w.buf[off+2] = byte(v.Sec)
	binary.LittleEndian.PutUint32(w.buf[off+3:], uint32(v.Microsec))
	w.markSet(index, f)
	return nil
}

func (w *RowWriter) writeDateTime(index int, f *Field, v DateTime) error {
	if f.Type != TypeDateTime {
		return fmt.Errorf("%w: datetime into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	off := w.fieldOffset(f)
	binary.LittleEndian.PutUint16(w.buf[off:], uint16(v.Year))
	w.buf[off+2] = byte(v.Month)
	w.buf[off+3] = byte(v.Day)
	w.buf[off+4] = byte(v.Hour)
	w.buf[off+5] = byte(v.Minute)
	w.buf[off+6] = byte(v.Sec)
	binary.LittleEndian.PutUint32(w.buf[off+7:], uint32(v.Microsec))
	w.markSet(index, f)
	return nil
}

func (w *RowWriter) writeDuration(index int, f *Field, v Duration) error {
	if f.Type != TypeDuration {
		return fmt.Errorf("%w: duration into %s field %s", ErrTypeMismatch, f.Type, f.Name)
	}
	off := w.fieldOffset(f)
	binary.LittleEndian.PutUint64(w.buf[off:], uint64(v.Seconds))
	binary.LittleEndian.PutUint32(w.buf[off+8:], uint32(v.Microseconds))
	binary.LittleEndian.PutUint32(w.buf[off+12:], uint32(v.Months))
	w.markSet(index, f)
	return nil
}

// writeContainer encodes a list or set payload: an i32 element count
// followed by the elements. Strings carry an i32 length prefix; ints are
// truncated to 32 bits and floats narrowed to float32 to keep container
// payloads compact.
func (w *RowWriter) writeContainer(index int, f *Field, elems []Value, asSet bool) error {
	if !f.Type.isContainer() || f.Type.isSet() != asSet {
		kind := "list"
		if asSet {
			kind = "set"
		}
		return fmt.Errorf("%w: %s into %s field %s", ErrTypeMismatch, kind, f.Type, f.Name)
	}
	ek := f.Type.elemKind()
	for _, e := range elems {
		if e.Kind() != ek {
			return fmt.Errorf("%w: %s element in %s field %s", ErrTypeMismatch, e.Kind(), f.Type, f.Name)
		}
	}

	// The payload is staged in full before any buffer mutation so a failed
	// write leaves the row untouched.
	toWrite := elems
	if asSet {
		seen := make(map[string]struct{}, len(elems))
		toWrite = make([]Value, 0, len(elems))
		for _, e := range elems {
			k := e.dedupKey()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			toWrite = append(toWrite, e)
		}
	}
	payload := make([]byte, 4, 4+len(toWrite)*4)
	binary.LittleEndian.PutUint32(payload, uint32(int32(len(toWrite))))
	for _, e := range toWrite {
		switch ek {
		case KindString:
			s := e.Str()
			var lenBuf [4]byte
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(int32(len(s))))
			payload = append(payload, lenBuf[:]...)
			payload = append(payload, s...)
		case KindInt:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(int32(e.Int())))
			payload = append(payload, b[:]...)
		case KindFloat:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(e.Float())))
			payload = append(payload, b[:]...)
		}
	}

	off := w.fieldOffset(f)
	if w.isSet[index] {
		w.outOfSpace = true
	}
	if w.outOfSpace {
		w.overflow = append(w.overflow, payload)
		binary.LittleEndian.PutUint32(w.buf[off:], 0)
		binary.LittleEndian.PutUint32(w.buf[off+4:], uint32(int32(len(w.overflow)-1)))
	} else {
		binary.LittleEndian.PutUint32(w.buf[off:], uint32(int32(len(w.buf))))
		binary.LittleEndian.PutUint32(w.buf[off+4:], uint32(int32(len(toWrite))))
		w.buf = append(w.buf, payload...)
	}
	w.approxVarLen += len(payload)
	w.markSet(index, f)
	return nil
}

// resolveUnsetFields walks the fields in ascending index order and fills
// every never-set field from its default expression or null marker.
func (w *RowWriter) resolveUnsetFields() error {
	for i := 0; i < w.schema.NumFields(); i++ {
		if w.isSet[i] {
			continue
		}
		f := w.schema.Field(i)
		switch {
		case f.HasDefault():
			if w.Resolver == nil {
				return fmt.Errorf("%w: field %q has a default expression but no resolver is configured",
					ErrBadSchema, f.Name)
			}
			v, err := w.Resolver.Resolve(f.Default)
			if err != nil {
				return fmt.Errorf("%w: default for field %q: %v", ErrBadSchema, f.Name, err)
			}
			if v.IsNull() {
				if !f.Nullable {
					return fmt.Errorf("%w: default for non-nullable field %q evaluated to null",
						ErrBadSchema, f.Name)
				}
				w.setNullBit(f.NullPos)
				w.isSet[i] = true
				continue
			}
			// Defaults flow through the normal setter so the same coercion
			// and range rules apply; a failure here means the schema ships
			// a default its own field cannot hold.
			if err := w.SetValue(i, v); err != nil {
				return fmt.Errorf("%w: default for field %q: %v", ErrBadSchema, f.Name, err)
			}
		case f.Nullable:
			w.setNullBit(f.NullPos)
			w.isSet[i] = true
		default:
			return fmt.Errorf("%w: %s", ErrFieldUnset, f.Name)
		}
	}
	return nil
}

// compact rewrites the row into a fresh buffer: the header, null bitmap and
// fixed region are copied verbatim, then every variable-length payload is
// re-appended contiguously in declaration order with its slot fixed up,
// resolving overflow-arena indirection back to real bytes.
func (w *RowWriter) compact() error {
	fixedEnd := w.fixedEnd()
	out := make([]byte, fixedEnd, fixedEnd+w.approxVarLen+trailerSize)
	copy(out, w.buf[:fixedEnd])

	for i := 0; i < w.schema.NumFields(); i++ {
		f := w.schema.Field(i)
		if !f.Type.isVarLen() {
			continue
		}
		slot := w.fieldOffset(f)
		if f.Nullable && w.checkNullBit(f.NullPos) {
			binary.LittleEndian.PutUint32(out[slot:], 0)
			binary.LittleEndian.PutUint32(out[slot+4:], 0)
			continue
		}
		oldOff := int32(binary.LittleEndian.Uint32(w.buf[slot:]))
		aux := int32(binary.LittleEndian.Uint32(w.buf[slot+4:]))

		var payload []byte
		if oldOff > 0 {
			end, err := varPayloadEnd(w.buf, int(oldOff), int(aux), f.Type)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
			payload = w.buf[oldOff:end]
		} else {
			if int(aux) >= len(w.overflow) {
				return fmt.Errorf("%w: field %q references overflow entry %d of %d",
					ErrCorruptRow, f.Name, aux, len(w.overflow))
			}
			payload = w.overflow[aux]
		}

		newAux := int32(len(payload))
		if f.Type.isContainer() {
			if len(payload) < 4 {
				return fmt.Errorf("%w: container payload for field %q is truncated", ErrCorruptRow, f.Name)
			}
			newAux = int32(binary.LittleEndian.Uint32(payload))
		}
		binary.LittleEndian.PutUint32(out[slot:], uint32(int32(len(out))))
		binary.LittleEndian.PutUint32(out[slot+4:], uint32(newAux))
		out = append(out, payload...)
	}

	w.buf = out
	w.overflow = nil
	w.outOfSpace = false
	w.compacted = true
	return nil
}

// varPayloadEnd returns the end offset of a variable-length payload stored
// inline in buf. For strings aux is the byte length; for containers aux is
// the element count and the payload must be walked.
func varPayloadEnd(buf []byte, off, aux int, t FieldType) (int, error) {
	if !t.isContainer() {
		end := off + aux
		if end > len(buf) {
			return 0, fmt.Errorf("%w: payload [%d:%d] exceeds buffer", ErrCorruptRow, off, end)
		}
		return end, nil
	}
	if off+4 > len(buf) {
		return 0, fmt.Errorf("%w: container count at %d exceeds buffer", ErrCorruptRow, off)
	}
	count := int(int32(binary.LittleEndian.Uint32(buf[off:])))
	if count < 0 {
		return 0, fmt.Errorf("%w: negative container count %d", ErrCorruptRow, count)
	}
	pos := off + 4
	switch t.elemKind() {
	case KindInt, KindFloat:
		pos += count * 4
	case KindString:
		for i := 0; i < count; i++ {
			if pos+4 > len(buf) {
				return 0, fmt.Errorf("%w: container element %d exceeds buffer", ErrCorruptRow, i)
			}
			n := int(int32(binary.LittleEndian.Uint32(buf[pos:])))
			if n < 0 {
				return 0, fmt.Errorf("%w: negative element length %d", ErrCorruptRow, n)
			}
			pos += 4 + n
		}
	}
	if pos > len(buf) {
		return 0, fmt.Errorf("%w: container payload [%d:%d] exceeds buffer", ErrCorruptRow, off, pos)
	}
	return pos, nil
}

// Finish resolves unset fields, compacts overflowed payloads, appends the
// write-timestamp trailer and freezes the row. A failed Finish leaves the
// row unusable; a second call fails without touching the buffer.
func (w *RowWriter) Finish() error {
	if w.finished {
		return ErrAlreadyFinished
	}
	if err := w.resolveUnsetFields(); err != nil {
		return err
	}
	if w.outOfSpace {
		if err := w.compact(); err != nil {
			return err
		}
	}
	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint64(trailer[:], uint64(time.Now().UnixMicro()))
	w.buf = append(w.buf, trailer[:]...)
	w.finished = true
	return nil
}

// Encoded returns the finished row bytes. It fails before a successful
// Finish; the buffer must never be persisted half-built.
func (w *RowWriter) Encoded() ([]byte, error) {
	if !w.finished {
		return nil, ErrNotFinished
	}
	return w.buf, nil
}

// Compacted reports whether Finish had to run the compaction pass.
func (w *RowWriter) Compacted() bool { return w.compacted }

// utf8CutSize returns the largest byte count <= max that does not split a
// multi-byte UTF-8 code point.
func utf8CutSize(b []byte, max int) int {
	n := 0
	for n < len(b) {
		_, size := utf8.DecodeRune(b[n:])
		if n+size > max {
			break
		}
		n += size
	}
	return n
}
