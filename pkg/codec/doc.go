// Package codec implements the binary row format of YggDB's storage layer.
//
// A row is the encoded property set of one vertex or edge under a fixed,
// versioned schema. The format is self-describing enough to be decoded with
// the schema at hand and compact enough to be persisted verbatim by the
// storage engine, which treats the buffer as opaque bytes.
//
// # Row Format
//
// Four zones, contiguous in this order, plus a trailer:
//
//	[header][null bitmap][fixed region][variable region][timestamp(8)]
//
// Fields:
//   - Header: one byte 0x08|n where n (0-7) is the number of little-endian
//     schema version bytes that follow. n=0 means the version is omitted.
//   - Null bitmap: ceil(nullable/8) bytes, one bit per nullable field in
//     declaration order, MSB-first within each byte. A set bit means the
//     field is logically null regardless of its fixed-region bytes.
//   - Fixed region: one slot per field at its schema-computed offset.
//     Numeric, date, time and duration types store their native
//     little-endian layouts in place. Strings, geographies, lists and sets
//     store an i32 offset into the variable region plus an i32 byte length
//     (strings) or element count (containers).
//   - Variable region: raw payloads appended in write order. Container
//     payloads lead with their own i32 element count.
//   - Trailer: the microsecond wall-clock time of encoding, appended only
//     by a successful Finish.
//
// # Writing
//
// A RowWriter is bound to one schema and one row. Fields may be set in any
// order and more than once; rewriting a variable-length field routes the new
// payload through an overflow arena, and Finish reconciles the arena in a
// single compaction pass that rewrites all variable payloads contiguously.
// Finish also fills never-set fields from their default expressions or null
// markers, so a finished row always has every field accounted for.
//
// # Error Handling
//
// Caller-correctable failures (unknown field, type mismatch, out-of-range,
// not-nullable, field-unset) are ordinary errors matched with errors.Is;
// the writer stays usable and the offending field stays unset. Failures
// wrapping ErrCorruptRow or ErrBadSchema indicate schema/data drift or a
// broken default expression: the row must be discarded.
//
// # Concurrency
//
// Writers carry no synchronization; build one per row. Readers and schemas
// are read-only after construction and safe to share.
package codec
