// Package query models filter expressions over schema fields and plans
// secondary-index scans for them. The planner only builds scan contexts;
// executing them against an index is pkg/index's job.
package query

import (
	"fmt"
	"strings"

	"github.com/torvik/yggdb/pkg/codec"
)

// Op is a relational comparison operator.
type Op int

const (
	OpEQ Op = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

func (o Op) String() string {
	switch o {
	case OpEQ:
		return "="
	case OpNE:
		return "!="
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Row supplies field values for filter evaluation.
type Row interface {
	Field(name string) (codec.Value, error)
}

// MapRow is a Row over an in-memory field map, mainly for tests and
// brute-force checks.
type MapRow map[string]codec.Value

func (m MapRow) Field(name string) (codec.Value, error) {
	v, ok := m[name]
	if !ok {
		return codec.Value{}, fmt.Errorf("unknown field %q", name)
	}
	return v, nil
}

// RowFromReader adapts a decoded row to the Row interface.
func RowFromReader(r *codec.RowReader) Row {
	return readerRow{r: r}
}

type readerRow struct {
	r *codec.RowReader
}

func (rr readerRow) Field(name string) (codec.Value, error) {
	return rr.r.ValueByName(name)
}

// Filter is a boolean predicate over a row's fields.
type Filter interface {
	Matches(row Row) (bool, error)
	String() string
}

// Rel compares one column against a constant.
type Rel struct {
	Col string
	Op  Op
	Val codec.Value
}

// NewRel builds a single-column comparison.
func NewRel(col string, op Op, val codec.Value) *Rel {
	return &Rel{Col: col, Op: op, Val: val}
}

// Matches evaluates the comparison. Null and incomparable values never
// match, mirroring three-valued comparison semantics.
func (r *Rel) Matches(row Row) (bool, error) {
	v, err := row.Field(r.Col)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	cmp, ok := v.Compare(r.Val)
	if !ok {
		return false, nil
	}
	switch r.Op {
	case OpEQ:
		return cmp == 0, nil
	case OpNE:
		return cmp != 0, nil
	case OpLT:
		return cmp < 0, nil
	case OpLE:
		return cmp <= 0, nil
	case OpGT:
		return cmp > 0, nil
	case OpGE:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("unsupported operator %s", r.Op)
	}
}

func (r *Rel) String() string {
	return fmt.Sprintf("%s %s %s", r.Col, r.Op, r.Val)
}

// And is a conjunction of filters.
type And struct {
	Operands []Filter
}

// NewAnd builds a conjunction.
func NewAnd(operands ...Filter) *And { return &And{Operands: operands} }

func (a *And) Matches(row Row) (bool, error) {
	for _, op := range a.Operands {
		ok, err := op.Matches(row)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (a *And) String() string { return joinOperands(a.Operands, " AND ") }

// Or is a disjunction of filters.
type Or struct {
	Operands []Filter
}

// NewOr builds a disjunction.
func NewOr(operands ...Filter) *Or { return &Or{Operands: operands} }

func (o *Or) Matches(row Row) (bool, error) {
	for _, op := range o.Operands {
		ok, err := op.Matches(row)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (o *Or) String() string { return joinOperands(o.Operands, " OR ") }

func joinOperands(operands []Filter, sep string) string {
	parts := make([]string, len(operands))
	for i, op := range operands {
		parts[i] = op.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
