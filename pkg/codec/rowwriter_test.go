package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

// stubResolver maps serialized default blobs to fixed values for tests.
type stubResolver map[string]Value

func (r stubResolver) Resolve(expr []byte) (Value, error) {
	v, ok := r[string(expr)]
	if !ok {
		return Value{}, fmt.Errorf("unknown expression %q", expr)
	}
	return v, nil
}

func mustSchema(t *testing.T, version uint64, defs []FieldDef) *Schema {
	t.Helper()
	s, err := NewSchema(version, defs)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	return s
}

func TestRowWriter_HeaderVersionBytes(t *testing.T) {
	testCases := []struct {
		version   uint64
		headerLen int
	}{
		{0, 1},
		{1, 2},
		{255, 2},
		{256, 3},
		{65535, 3},
		{1 << 16, 4},
		{1 << 24, 5},
		{1 << 32, 6},
		{1 << 40, 7},
		{1 << 48, 8},
		{1<<56 - 1, 8},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("version_%d", tc.version), func(t *testing.T) {
			schema := mustSchema(t, tc.version, []FieldDef{
				{Name: "n", Type: TypeInt32},
			})
			w, err := NewRowWriter(schema)
			if err != nil {
				t.Fatalf("NewRowWriter failed: %v", err)
			}

			verBytes := tc.headerLen - 1
			if w.buf[0] != byte(headerSig|verBytes) {
				t.Errorf("header byte: got 0x%02x, want 0x%02x", w.buf[0], headerSig|verBytes)
			}
			var ver uint64
			for i := verBytes - 1; i >= 0; i-- {
				ver = ver<<8 | uint64(w.buf[1+i])
			}
			if ver != tc.version {
				t.Errorf("embedded version: got %d, want %d", ver, tc.version)
			}
		})
	}
}

func TestRowWriter_VersionTooBig(t *testing.T) {
	schema := mustSchema(t, 1<<56, []FieldDef{{Name: "n", Type: TypeInt32}})
	_, err := NewRowWriter(schema)
	if !errors.Is(err, ErrBadSchema) {
		t.Fatalf("expected ErrBadSchema for version needing 8 bytes, got %v", err)
	}
}

func TestRowWriter_IntRangeEnforcement(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{
		{Name: "tiny", Type: TypeInt8},
		{Name: "short", Type: TypeInt16},
		{Name: "mid", Type: TypeInt32},
	})

	testCases := []struct {
		field string
		value int64
		err   error
	}{
		{"tiny", 100, nil},
		{"tiny", 1000, ErrOutOfRange},
		{"tiny", -129, ErrOutOfRange},
		{"short", 32767, nil},
		{"short", 32768, ErrOutOfRange},
		{"mid", math.MaxInt32, nil},
		{"mid", math.MaxInt32 + 1, ErrOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s=%d", tc.field, tc.value), func(t *testing.T) {
			w, err := NewRowWriter(schema)
			if err != nil {
				t.Fatalf("NewRowWriter failed: %v", err)
			}
			err = w.SetValueByName(tc.field, NewInt(tc.value))
			if tc.err == nil {
				if err != nil {
					t.Fatalf("SetValueByName failed: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestRowWriter_RangeFailureLeavesFieldUnset(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{{Name: "tiny", Type: TypeInt8}})
	w, err := NewRowWriter(schema)
	if err != nil {
		t.Fatalf("NewRowWriter failed: %v", err)
	}

	if err := w.SetValueByName("tiny", NewInt(1000)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := w.Finish(); !errors.Is(err, ErrFieldUnset) {
		t.Fatalf("expected ErrFieldUnset after failed write, got %v", err)
	}

	// The writer stays usable: a corrected value still lands.
	w2, _ := NewRowWriter(schema)
	if err := w2.SetValueByName("tiny", NewInt(1000)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := w2.SetValueByName("tiny", NewInt(100)); err != nil {
		t.Fatalf("retry with valid value failed: %v", err)
	}
	if err := w2.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	encoded, err := w2.Encoded()
	if err != nil {
		t.Fatalf("Encoded failed: %v", err)
	}
	r, err := NewRowReader(schema, encoded)
	if err != nil {
		t.Fatalf("NewRowReader failed: %v", err)
	}
	v, err := r.ValueByName("tiny")
	if err != nil {
		t.Fatalf("ValueByName failed: %v", err)
	}
	if v.Int() != 100 {
		t.Errorf("decoded value: got %d, want 100", v.Int())
	}
}

func TestRowWriter_NumericCoercion(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{
		{Name: "flag", Type: TypeBool},
		{Name: "wide", Type: TypeInt64},
		{Name: "f32", Type: TypeFloat},
		{Name: "f64", Type: TypeDouble},
		{Name: "mid", Type: TypeInt32},
	})

	t.Run("bool into int is zero extended", func(t *testing.T) {
		w, _ := NewRowWriter(schema)
		if err := w.SetValueByName("wide", NewBool(true)); err != nil {
			t.Fatalf("bool into int64 failed: %v", err)
		}
		v := decodeField(t, schema, w, "wide")
		if v.Int() != 1 {
			t.Errorf("got %d, want 1", v.Int())
		}
	})

	t.Run("int into bool stores 0 or 1", func(t *testing.T) {
		w, _ := NewRowWriter(schema)
		if err := w.SetValueByName("flag", NewInt(17)); err != nil {
			t.Fatalf("int into bool failed: %v", err)
		}
		v := decodeField(t, schema, w, "flag")
		if !v.Bool() {
			t.Error("got false, want true")
		}
	})

	t.Run("int widens into float without range check", func(t *testing.T) {
		w, _ := NewRowWriter(schema)
		if err := w.SetValueByName("f32", NewInt(1<<40)); err != nil {
			t.Fatalf("int into float failed: %v", err)
		}
		v := decodeField(t, schema, w, "f32")
		if v.Float() != float64(float32(1<<40)) {
			t.Errorf("got %g", v.Float())
		}
	})

	t.Run("float rounds into int", func(t *testing.T) {
		w, _ := NewRowWriter(schema)
		if err := w.SetValueByName("mid", NewFloat(2.5)); err != nil {
			t.Fatalf("float into int32 failed: %v", err)
		}
		v := decodeField(t, schema, w, "mid")
		if v.Int() != 3 {
			t.Errorf("got %d, want 3 (round half away from zero)", v.Int())
		}
	})

	t.Run("double out of float range is rejected", func(t *testing.T) {
		w, _ := NewRowWriter(schema)
		if err := w.SetValueByName("f32", NewFloat(1e100)); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("expected ErrOutOfRange, got %v", err)
		}
	})

	t.Run("double into double keeps full precision", func(t *testing.T) {
		w, _ := NewRowWriter(schema)
		want := 3.141592653589793
		if err := w.SetValueByName("f64", NewFloat(want)); err != nil {
			t.Fatalf("SetValueByName failed: %v", err)
		}
		v := decodeField(t, schema, w, "f64")
		if v.Float() != want {
			t.Errorf("got %v, want %v", v.Float(), want)
		}
	})

	t.Run("string into int is a type mismatch", func(t *testing.T) {
		w, _ := NewRowWriter(schema)
		if err := w.SetValueByName("wide", NewString("nope")); !errors.Is(err, ErrTypeMismatch) {
			t.Fatalf("expected ErrTypeMismatch, got %v", err)
		}
	})
}

func TestRowWriter_TimestampRange(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{
		{Name: "ts32", Type: TypeTimestamp32},
		{Name: "ts64", Type: TypeTimestamp64},
	})

	w, _ := NewRowWriter(schema)
	if err := w.SetValueByName("ts32", NewInt(math.MaxInt32)); err != nil {
		t.Fatalf("max int32 timestamp failed: %v", err)
	}
	if err := w.SetValueByName("ts32", NewInt(math.MaxInt32 + 1)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange past 2038, got %v", err)
	}
	if err := w.SetValueByName("ts64", NewInt(maxTimestamp)); err != nil {
		t.Fatalf("max timestamp failed: %v", err)
	}
	if err := w.SetValueByName("ts64", NewInt(maxTimestamp + 1)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := w.SetValueByName("ts64", NewInt(-1)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for negative timestamp, got %v", err)
	}
}

func TestRowWriter_NullEnforcement(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{
		{Name: "required", Type: TypeInt32},
		{Name: "optional", Type: TypeInt32, Nullable: true},
	})

	w, _ := NewRowWriter(schema)
	if err := w.SetNullByName("required"); !errors.Is(err, ErrNotNullable) {
		t.Fatalf("expected ErrNotNullable, got %v", err)
	}
	if err := w.Finish(); !errors.Is(err, ErrFieldUnset) {
		t.Fatalf("expected ErrFieldUnset, got %v", err)
	}

	w2, _ := NewRowWriter(schema)
	if err := w2.SetValueByName("required", NewInt(7)); err != nil {
		t.Fatalf("SetValueByName failed: %v", err)
	}
	if err := w2.SetNullByName("optional"); err != nil {
		t.Fatalf("SetNullByName failed: %v", err)
	}
	if err := w2.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	encoded, _ := w2.Encoded()
	r, err := NewRowReader(schema, encoded)
	if err != nil {
		t.Fatalf("NewRowReader failed: %v", err)
	}
	v, err := r.ValueByName("optional")
	if err != nil {
		t.Fatalf("ValueByName failed: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("expected null, got %s", v)
	}
}

func TestRowWriter_SecondWriteCompaction(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{
		{Name: "first", Type: TypeString},
		{Name: "second", Type: TypeString},
	})

	w, _ := NewRowWriter(schema)
	if err := w.SetValueByName("first", NewString("abc")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := w.SetValueByName("second", NewString("stable")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.SetValueByName("first", NewString("defgh")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if !w.Compacted() {
		t.Error("expected a compaction pass after a second write")
	}

	encoded, _ := w.Encoded()
	r, err := NewRowReader(schema, encoded)
	if err != nil {
		t.Fatalf("NewRowReader failed: %v", err)
	}
	v, _ := r.ValueByName("first")
	if v.Str() != "defgh" {
		t.Errorf("rewritten field: got %q, want %q", v.Str(), "defgh")
	}
	v, _ = r.ValueByName("second")
	if v.Str() != "stable" {
		t.Errorf("untouched field: got %q, want %q", v.Str(), "stable")
	}
	// The discarded first payload must not survive compaction.
	if bytes.Contains(encoded, []byte("abc")) {
		t.Error("stale payload still present after compaction")
	}
}

func TestRowWriter_ContainerRewrite(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{
		{Name: "tags", Type: TypeListInt},
		{Name: "name", Type: TypeString},
	})

	w, _ := NewRowWriter(schema)
	if err := w.SetValueByName("tags", NewList([]Value{NewInt(1), NewInt(2)})); err != nil {
		t.Fatalf("first list write failed: %v", err)
	}
	if err := w.SetValueByName("name", NewString("row")); err != nil {
		t.Fatalf("string write failed: %v", err)
	}
	if err := w.SetValueByName("tags", NewList([]Value{NewInt(3), NewInt(4), NewInt(5)})); err != nil {
		t.Fatalf("second list write failed: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	encoded, _ := w.Encoded()
	r, _ := NewRowReader(schema, encoded)
	v, err := r.ValueByName("tags")
	if err != nil {
		t.Fatalf("ValueByName failed: %v", err)
	}
	elems := v.Elems()
	want := []int64{3, 4, 5}
	if len(elems) != len(want) {
		t.Fatalf("element count: got %d, want %d", len(elems), len(want))
	}
	for i, e := range elems {
		if e.Int() != want[i] {
			t.Errorf("element %d: got %d, want %d", i, e.Int(), want[i])
		}
	}
	v, _ = r.ValueByName("name")
	if v.Str() != "row" {
		t.Errorf("string field after container rewrite: got %q", v.Str())
	}
}

func TestRowWriter_SetDedup(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{{Name: "ids", Type: TypeSetInt}})

	w, _ := NewRowWriter(schema)
	elems := []Value{NewInt(1), NewInt(2), NewInt(2), NewInt(3), NewInt(1)}
	if err := w.SetValueByName("ids", NewSet(elems)); err != nil {
		t.Fatalf("set write failed: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	encoded, _ := w.Encoded()
	r, _ := NewRowReader(schema, encoded)
	v, err := r.ValueByName("ids")
	if err != nil {
		t.Fatalf("ValueByName failed: %v", err)
	}
	got := v.Elems()
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("deduped count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Int() != want[i] {
			t.Errorf("element %d: got %d, want %d (first-occurrence order)", i, got[i].Int(), want[i])
		}
	}
}

func TestRowWriter_ContainerElementTypeMismatch(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{{Name: "ids", Type: TypeListInt}})

	w, _ := NewRowWriter(schema)
	err := w.SetValueByName("ids", NewList([]Value{NewInt(1), NewString("two")}))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	// Nothing was written: the field is still unset.
	if err := w.Finish(); !errors.Is(err, ErrFieldUnset) {
		t.Fatalf("expected ErrFieldUnset, got %v", err)
	}
}

func TestRowWriter_FixedStringTruncation(t *testing.T) {
	testCases := []struct {
		name  string
		size  int
		input string
		want  string
	}{
		{"ascii fits", 4, "abc", "abc"},
		{"ascii truncated", 4, "abcdef", "abcd"},
		{"multibyte boundary kept", 4, "héllo", "hél"},
		{"cjk truncated to whole rune", 4, "日本語", "日"},
		{"exact multibyte fit", 6, "日本", "日本"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			schema := mustSchema(t, 1, []FieldDef{
				{Name: "code", Type: TypeFixedString, FixedSize: tc.size},
			})
			w, _ := NewRowWriter(schema)
			if err := w.SetValueByName("code", NewString(tc.input)); err != nil {
				t.Fatalf("SetValueByName failed: %v", err)
			}
			v := decodeField(t, schema, w, "code")
			if v.Str() != tc.want {
				t.Errorf("got %q, want %q", v.Str(), tc.want)
			}
		})
	}
}

func TestRowWriter_GeographyShape(t *testing.T) {
	// WKB point header: little-endian marker + geometry type 1 + x/y.
	point := append([]byte{1, 1, 0, 0, 0}, make([]byte, 16)...)
	line := append([]byte{1, 2, 0, 0, 0}, make([]byte, 36)...)

	schema := mustSchema(t, 1, []FieldDef{
		{Name: "loc", Type: TypeGeography, Shape: ShapePoint},
		{Name: "geo", Type: TypeGeography},
	})

	w, _ := NewRowWriter(schema)
	if err := w.SetValueByName("loc", NewGeography(Geography{Shape: ShapeLineString, WKB: line})); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for wrong shape, got %v", err)
	}
	if err := w.SetValueByName("loc", NewGeography(Geography{Shape: ShapePoint, WKB: point})); err != nil {
		t.Fatalf("point into point field failed: %v", err)
	}
	if err := w.SetValueByName("geo", NewGeography(Geography{Shape: ShapeLineString, WKB: line})); err != nil {
		t.Fatalf("any-shape field rejected a linestring: %v", err)
	}
	if err := w.SetValueByName("geo", NewString("not wkb")); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for plain string into geography, got %v", err)
	}

	if err := w.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	encoded, _ := w.Encoded()
	r, _ := NewRowReader(schema, encoded)
	v, err := r.ValueByName("loc")
	if err != nil {
		t.Fatalf("ValueByName failed: %v", err)
	}
	if v.Geography().Shape != ShapePoint {
		t.Errorf("decoded shape: got %s, want point", v.Geography().Shape)
	}
	if !bytes.Equal(v.Geography().WKB, point) {
		t.Error("decoded WKB differs from input")
	}
}

func TestRowWriter_DefaultResolution(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{
		{Name: "answer", Type: TypeInt32, Default: []byte("answer-expr")},
		{Name: "note", Type: TypeString, Nullable: true},
		{Name: "title", Type: TypeString, Default: []byte("title-expr")},
	})

	w, _ := NewRowWriter(schema)
	w.Resolver = stubResolver{
		"answer-expr": NewInt(42),
		"title-expr":  NewString("untitled"),
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	encoded, _ := w.Encoded()
	r, _ := NewRowReader(schema, encoded)
	v, _ := r.ValueByName("answer")
	if v.Int() != 42 {
		t.Errorf("default int: got %d, want 42", v.Int())
	}
	v, _ = r.ValueByName("title")
	if v.Str() != "untitled" {
		t.Errorf("default string: got %q, want %q", v.Str(), "untitled")
	}
	v, _ = r.ValueByName("note")
	if !v.IsNull() {
		t.Errorf("nullable without default: got %s, want null", v)
	}
}

func TestRowWriter_DefaultFailures(t *testing.T) {
	t.Run("missing resolver", func(t *testing.T) {
		schema := mustSchema(t, 1, []FieldDef{
			{Name: "n", Type: TypeInt32, Default: []byte("expr")},
		})
		w, _ := NewRowWriter(schema)
		if err := w.Finish(); !errors.Is(err, ErrBadSchema) {
			t.Fatalf("expected ErrBadSchema, got %v", err)
		}
	})

	t.Run("default does not fit the field", func(t *testing.T) {
		schema := mustSchema(t, 1, []FieldDef{
			{Name: "tiny", Type: TypeInt8, Default: []byte("expr")},
		})
		w, _ := NewRowWriter(schema)
		w.Resolver = stubResolver{"expr": NewInt(100000)}
		if err := w.Finish(); !errors.Is(err, ErrBadSchema) {
			t.Fatalf("expected ErrBadSchema, got %v", err)
		}
	})

	t.Run("null default on non-nullable field", func(t *testing.T) {
		schema := mustSchema(t, 1, []FieldDef{
			{Name: "n", Type: TypeInt32, Default: []byte("expr")},
		})
		w, _ := NewRowWriter(schema)
		w.Resolver = stubResolver{"expr": NewNull()}
		if err := w.Finish(); !errors.Is(err, ErrBadSchema) {
			t.Fatalf("expected ErrBadSchema, got %v", err)
		}
	})
}

func TestRowWriter_FinishTwice(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{{Name: "n", Type: TypeInt32}})
	w, _ := NewRowWriter(schema)
	if err := w.SetValueByName("n", NewInt(1)); err != nil {
		t.Fatalf("SetValueByName failed: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("first Finish failed: %v", err)
	}
	first, _ := w.Encoded()
	snapshot := append([]byte(nil), first...)

	if err := w.Finish(); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished, got %v", err)
	}
	second, _ := w.Encoded()
	if !bytes.Equal(snapshot, second) {
		t.Error("failed second Finish altered the buffer")
	}

	if err := w.SetValueByName("n", NewInt(2)); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished for setter after Finish, got %v", err)
	}
}

func TestRowWriter_TimestampTrailer(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{{Name: "n", Type: TypeInt32}})
	w, _ := NewRowWriter(schema)
	if err := w.SetValueByName("n", NewInt(1)); err != nil {
		t.Fatalf("SetValueByName failed: %v", err)
	}
	before := time.Now().UnixMicro()
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	after := time.Now().UnixMicro()

	encoded, _ := w.Encoded()
	r, err := NewRowReader(schema, encoded)
	if err != nil {
		t.Fatalf("NewRowReader failed: %v", err)
	}
	if ts := r.Timestamp(); ts < before || ts > after {
		t.Errorf("trailer timestamp %d outside [%d, %d]", ts, before, after)
	}
}

func TestRowWriter_UnknownField(t *testing.T) {
	schema := mustSchema(t, 1, []FieldDef{{Name: "n", Type: TypeInt32}})
	w, _ := NewRowWriter(schema)

	if err := w.SetValue(5, NewInt(1)); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField for index, got %v", err)
	}
	if err := w.SetValue(-1, NewInt(1)); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField for negative index, got %v", err)
	}
	if err := w.SetValueByName("missing", NewInt(1)); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField for name, got %v", err)
	}
	if err := w.SetNullByName("missing"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField for SetNull, got %v", err)
	}
}

// decodeField finishes the writer (filling remaining fields with nulls
// where it can) and decodes one field back.
func decodeField(t *testing.T, schema *Schema, w *RowWriter, name string) Value {
	t.Helper()
	for i := 0; i < schema.NumFields(); i++ {
		if !w.isSet[i] && !schema.Field(i).Nullable && !schema.Field(i).HasDefault() {
			// Backfill required fields so Finish can run.
			if err := zeroFill(w, i, schema.Field(i)); err != nil {
				t.Fatalf("backfill field %d: %v", i, err)
			}
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	encoded, err := w.Encoded()
	if err != nil {
		t.Fatalf("Encoded failed: %v", err)
	}
	r, err := NewRowReader(schema, encoded)
	if err != nil {
		t.Fatalf("NewRowReader failed: %v", err)
	}
	v, err := r.ValueByName(name)
	if err != nil {
		t.Fatalf("ValueByName(%q) failed: %v", name, err)
	}
	return v
}

func zeroFill(w *RowWriter, index int, f *Field) error {
	switch f.Type {
	case TypeBool:
		return w.SetValue(index, NewBool(false))
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64, TypeTimestamp32, TypeTimestamp64:
		return w.SetValue(index, NewInt(0))
	case TypeFloat, TypeDouble:
		return w.SetValue(index, NewFloat(0))
	case TypeString, TypeFixedString:
		return w.SetValue(index, NewString(""))
	default:
		return fmt.Errorf("no zero value for %s", f.Type)
	}
}
