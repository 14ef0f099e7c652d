package codec

import (
	"fmt"
)

// FieldType is the declared storage type of a schema field.
type FieldType uint8

const (
	TypeUnknown FieldType = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat
	TypeDouble
	TypeFixedString
	TypeString
	TypeDate
	TypeTime
	TypeDateTime
	TypeTimestamp32
	TypeTimestamp64
	TypeGeography
	TypeDuration
	TypeListString
	TypeListInt
	TypeListFloat
	TypeSetString
	TypeSetInt
	TypeSetFloat
)

func (t FieldType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeFixedString:
		return "fixed_string"
	case TypeString:
		return "string"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeDateTime:
		return "datetime"
	case TypeTimestamp32:
		return "timestamp32"
	case TypeTimestamp64:
		return "timestamp64"
	case TypeGeography:
		return "geography"
	case TypeDuration:
		return "duration"
	case TypeListString:
		return "list<string>"
	case TypeListInt:
		return "list<int>"
	case TypeListFloat:
		return "list<float>"
	case TypeSetString:
		return "set<string>"
	case TypeSetInt:
		return "set<int>"
	case TypeSetFloat:
		return "set<float>"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// isVarLen reports whether the field's payload lives in the variable region,
// with the fixed slot holding an offset/length (or offset/count) pair.
func (t FieldType) isVarLen() bool {
	switch t {
	case TypeString, TypeGeography,
		TypeListString, TypeListInt, TypeListFloat,
		TypeSetString, TypeSetInt, TypeSetFloat:
		return true
	default:
		return false
	}
}

func (t FieldType) isContainer() bool {
	switch t {
	case TypeListString, TypeListInt, TypeListFloat,
		TypeSetString, TypeSetInt, TypeSetFloat:
		return true
	default:
		return false
	}
}

func (t FieldType) isSet() bool {
	switch t {
	case TypeSetString, TypeSetInt, TypeSetFloat:
		return true
	default:
		return false
	}
}

// elemKind returns the element kind a container field accepts.
func (t FieldType) elemKind() Kind {
	switch t {
	case TypeListString, TypeSetString:
		return KindString
	case TypeListInt, TypeSetInt:
		return KindInt
	case TypeListFloat, TypeSetFloat:
		return KindFloat
	default:
		return KindNull
	}
}

// slotSize is the number of bytes the type occupies in the fixed region.
// FixedString is sized per field and handled by the schema builder.
func (t FieldType) slotSize() int {
	switch t {
	case TypeBool, TypeInt8:
		return 1
	case TypeInt16:
		return 2
	case TypeInt32, TypeFloat:
		return 4
	case TypeInt64, TypeDouble, TypeTimestamp32, TypeTimestamp64:
		return 8
	case TypeDate:
		return 4 // i16 year + i8 month + i8 day
	case TypeTime:
		return 7 // i8 hour/minute/sec + i32 microsec
	case TypeDateTime:
		return 11
	case TypeDuration:
		return 16 // i64 seconds + i32 microseconds + i32 months
	case TypeString, TypeGeography,
		TypeListString, TypeListInt, TypeListFloat,
		TypeSetString, TypeSetInt, TypeSetFloat:
		return 8 // i32 offset + i32 length-or-count
	default:
		return 0
	}
}

// FieldDef describes one field when building a schema.
type FieldDef struct {
	Name     string
	Type     FieldType
	Nullable bool

	// FixedSize is required for TypeFixedString and ignored otherwise.
	FixedSize int

	// Default, when non-nil, is a serialized default-value expression that
	// the writer resolves at finish time for fields never set.
	Default []byte

	// Shape restricts geography fields; ShapeAny accepts every geometry.
	Shape GeoShape
}

// Field is a resolved schema field with its precomputed layout.
type Field struct {
	Name     string
	Type     FieldType
	Offset   int
	Size     int
	Nullable bool
	NullPos  int
	Default  []byte
	Shape    GeoShape
}

// HasDefault reports whether the field carries a default-value expression.
func (f *Field) HasDefault() bool { return f.Default != nil }

// Schema is the immutable field layout a row is encoded under. Offsets,
// sizes and null-bit positions are fixed at construction; every writer and
// reader built against the schema shares it read-only.
type Schema struct {
	version     uint64
	fields      []Field
	byName      map[string]int
	size        int
	numNullable int
}

// NewSchema builds a schema from field definitions in declaration order.
func NewSchema(version uint64, defs []FieldDef) (*Schema, error) {
	s := &Schema{
		version: version,
		fields:  make([]Field, 0, len(defs)),
		byName:  make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: field without a name", ErrBadSchema)
		}
		if _, dup := s.byName[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrBadSchema, def.Name)
		}
		size := def.Type.slotSize()
		if def.Type == TypeFixedString {
			if def.FixedSize <= 0 {
				return nil, fmt.Errorf("%w: fixed_string field %q needs a positive size", ErrBadSchema, def.Name)
			}
			size = def.FixedSize
		} else if size == 0 {
			return nil, fmt.Errorf("%w: field %q has unsupported type %s", ErrBadSchema, def.Name, def.Type)
		}
		f := Field{
			Name:     def.Name,
			Type:     def.Type,
			Offset:   s.size,
			Size:     size,
			Nullable: def.Nullable,
			NullPos:  -1,
			Default:  def.Default,
			Shape:    def.Shape,
		}
		if def.Nullable {
			f.NullPos = s.numNullable
			s.numNullable++
		}
		s.byName[def.Name] = len(s.fields)
		s.fields = append(s.fields, f)
		s.size += size
	}
	return s, nil
}

// Version returns the schema version; zero means "no version tag".
func (s *Schema) Version() uint64 { return s.version }

// NumFields returns the number of fields.
func (s *Schema) NumFields() int { return len(s.fields) }

// NumNullable returns how many fields are nullable.
func (s *Schema) NumNullable() int { return s.numNullable }

// Size returns the byte size of the fixed region.
func (s *Schema) Size() int { return s.size }

// Field returns the field at index, or nil if out of range.
func (s *Schema) Field(index int) *Field {
	if index < 0 || index >= len(s.fields) {
		return nil
	}
	return &s.fields[index]
}

// FieldIndex returns the index of the named field, or -1.
func (s *Schema) FieldIndex(name string) int {
	if i, ok := s.byName[name]; ok {
		return i
	}
	return -1
}
