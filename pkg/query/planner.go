package query

import (
	"errors"
	"fmt"

	"github.com/torvik/yggdb/pkg/codec"
)

// ErrNoUsableIndex means no index can serve any column of the filter; the
// caller falls back to a full scan with the filter applied brute force.
var ErrNoUsableIndex = errors.New("no usable index for filter")

// Index describes a secondary index: an ordered list of columns.
type Index struct {
	Name    string
	Columns []string
}

// FilterItem is one column comparison extracted from a filter branch.
type FilterItem struct {
	Col string
	Op  Op
	Val codec.Value
}

// Analyze flattens a filter into scan branches, one slice of items per
// disjunction arm. It fails for shapes an index scan cannot serve, such as
// a disjunction nested under a conjunction.
func Analyze(f Filter) ([][]FilterItem, error) {
	branches, err := analyze(f)
	if err != nil {
		return nil, err
	}
	out := make([][]FilterItem, len(branches))
	for i, b := range branches {
		items := make([]FilterItem, len(b.rels))
		for j, r := range b.rels {
			items[j] = FilterItem{Col: r.Col, Op: r.Op, Val: r.Val}
		}
		out[i] = items
	}
	return out, nil
}

// ScanType says whether a column hint pins an exact value or a range.
type ScanType int

const (
	ScanPrefix ScanType = iota
	ScanRange
)

// ColumnHint scopes an index scan on one column: either an equality
// (ScanPrefix, Begin holds the value) or a range with optional bounds.
// Unbounded ends are nil.
type ColumnHint struct {
	Col   string
	Scan  ScanType
	Begin *Rel // lower bound or equality; Op is OpEQ, OpGT or OpGE
	End   *Rel // upper bound; Op is OpLT or OpLE
}

// ScanContext is one planned index scan. Rows produced by the hints must
// still pass Residual (nil when the hints consume the whole branch).
// Empty marks branches whose merged bounds are contradictory; they match
// nothing and need no scan at all.
type ScanContext struct {
	Index    *Index
	Hints    []ColumnHint
	Residual Filter
	Empty    bool
}

// branch is one conjunction of single-column comparisons.
type branch struct {
	rels []*Rel
}

// analyze flattens a filter into scan branches: one branch for a relational
// expression or a conjunction, one branch per operand of a disjunction.
// Disjunctions nested under conjunctions are not index-servable and fail.
func analyze(f Filter) ([]branch, error) {
	switch expr := f.(type) {
	case *Rel:
		return []branch{{rels: []*Rel{expr}}}, nil
	case *And:
		var b branch
		for _, op := range expr.Operands {
			rel, ok := op.(*Rel)
			if !ok {
				return nil, fmt.Errorf("%w: %s nested under AND", ErrNoUsableIndex, op)
			}
			b.rels = append(b.rels, rel)
		}
		if len(b.rels) == 0 {
			return nil, fmt.Errorf("%w: empty conjunction", ErrNoUsableIndex)
		}
		return []branch{b}, nil
	case *Or:
		var branches []branch
		for _, op := range expr.Operands {
			sub, err := analyze(op)
			if err != nil {
				return nil, err
			}
			branches = append(branches, sub...)
		}
		if len(branches) == 0 {
			return nil, fmt.Errorf("%w: empty disjunction", ErrNoUsableIndex)
		}
		return branches, nil
	default:
		return nil, fmt.Errorf("%w: unsupported filter %s", ErrNoUsableIndex, f)
	}
}

// PlanScan chooses the best index for each branch of the filter and builds
// its scan context. Disjunction branches plan independently; the caller
// unions their results.
func PlanScan(f Filter, indexes []*Index) ([]ScanContext, error) {
	branches, err := analyze(f)
	if err != nil {
		return nil, err
	}
	contexts := make([]ScanContext, 0, len(branches))
	for _, b := range branches {
		ctx, err := planBranch(b, indexes)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, ctx)
	}
	return contexts, nil
}

// score summarizes how well an index serves a branch.
type score struct {
	hints      int  // leading columns with a usable hint
	prefixOnly bool // every hint is an equality
	residual   int  // comparisons left for re-checking
}

func (s score) better(o score) bool {
	if s.hints != o.hints {
		return s.hints > o.hints
	}
	if s.prefixOnly != o.prefixOnly {
		return s.prefixOnly
	}
	return s.residual < o.residual
}

func planBranch(b branch, indexes []*Index) (ScanContext, error) {
	var (
		best      *Index
		bestScore score
		found     bool
	)
	for _, idx := range indexes {
		s, usable := scoreIndex(b, idx)
		if !usable {
			continue
		}
		if !found || s.better(bestScore) {
			best, bestScore, found = idx, s, true
		}
	}
	if !found {
		return ScanContext{}, fmt.Errorf("%w: columns %v", ErrNoUsableIndex, branchColumns(b))
	}
	return buildContext(b, best)
}

func branchColumns(b branch) []string {
	cols := make([]string, 0, len(b.rels))
	seen := make(map[string]struct{})
	for _, r := range b.rels {
		if _, dup := seen[r.Col]; dup {
			continue
		}
		seen[r.Col] = struct{}{}
		cols = append(cols, r.Col)
	}
	return cols
}

// scoreIndex walks the index columns in order, counting how many receive a
// hint. Accumulation stops at the first column whose predicates are not a
// plain equality: a single range hint is allowed there, and everything
// after it must be re-checked.
func scoreIndex(b branch, idx *Index) (score, bool) {
	s := score{prefixOnly: true}
	consumed := 0
	for _, col := range idx.Columns {
		eq, rng := splitColItems(b, col)
		if eq != nil {
			s.hints++
			consumed++
			continue
		}
		if len(rng) > 0 {
			s.hints++
			s.prefixOnly = false
			_, covered, _ := mergeRangeItems(col, rng)
			consumed += len(covered)
		}
		break
	}
	if s.hints == 0 {
		return score{}, false
	}
	s.residual = len(b.rels) - consumed
	return s, true
}

// splitColItems picks the first equality for a column, or its range
// comparisons when no equality exists. NE never produces a hint.
func splitColItems(b branch, col string) (*Rel, []*Rel) {
	var rng []*Rel
	for _, r := range b.rels {
		if r.Col != col {
			continue
		}
		switch r.Op {
		case OpEQ:
			return r, nil
		case OpLT, OpLE, OpGT, OpGE:
			rng = append(rng, r)
		}
	}
	return nil, rng
}

// buildContext assembles the hints for the chosen index and collects every
// comparison the hints do not fully consume into the residual filter.
func buildContext(b branch, idx *Index) (ScanContext, error) {
	ctx := ScanContext{Index: idx}
	used := make(map[*Rel]struct{})

	for _, col := range idx.Columns {
		eq, rng := splitColItems(b, col)
		if eq != nil {
			ctx.Hints = append(ctx.Hints, ColumnHint{Col: col, Scan: ScanPrefix, Begin: eq})
			used[eq] = struct{}{}
			continue
		}
		if len(rng) > 0 {
			hint, covered, empty := mergeRangeItems(col, rng)
			if empty {
				ctx.Empty = true
			}
			ctx.Hints = append(ctx.Hints, hint)
			for _, r := range covered {
				used[r] = struct{}{}
			}
		}
		// The first non-equality column ends hint accumulation: anything
		// on later columns cannot be assumed by the scan.
		break
	}

	var residual []Filter
	for _, r := range b.rels {
		if _, ok := used[r]; !ok {
			residual = append(residual, r)
		}
	}
	switch len(residual) {
	case 0:
	case 1:
		ctx.Residual = residual[0]
	default:
		ctx.Residual = NewAnd(residual...)
	}
	return ctx, nil
}

// mergeRangeItems folds several range comparisons over one column into a
// single begin/end pair: the greatest lower bound and least upper bound.
// covered holds the items the merged hint implies; a bound whose value is
// incomparable with the chosen one is not implied and must stay residual.
// Contradictory bounds (low > high) mark the branch empty.
func mergeRangeItems(col string, items []*Rel) (hint ColumnHint, covered []*Rel, empty bool) {
	hint = ColumnHint{Col: col, Scan: ScanRange}
	for _, r := range items {
		switch r.Op {
		case OpGT, OpGE:
			if hint.Begin == nil || tighterLow(r, hint.Begin) {
				hint.Begin = r
			}
		case OpLT, OpLE:
			if hint.End == nil || tighterHigh(r, hint.End) {
				hint.End = r
			}
		}
	}
	for _, r := range items {
		bound := hint.Begin
		if r.Op == OpLT || r.Op == OpLE {
			bound = hint.End
		}
		if r == bound {
			covered = append(covered, r)
			continue
		}
		if _, ok := r.Val.Compare(bound.Val); ok {
			covered = append(covered, r)
		}
	}
	if hint.Begin != nil && hint.End != nil {
		cmp, ok := hint.Begin.Val.Compare(hint.End.Val)
		if ok && (cmp > 0 || (cmp == 0 && (hint.Begin.Op == OpGT || hint.End.Op == OpLT))) {
			return hint, covered, true
		}
	}
	return hint, covered, false
}

func tighterLow(candidate, current *Rel) bool {
	cmp, ok := candidate.Val.Compare(current.Val)
	if !ok {
		return false
	}
	if cmp != 0 {
		return cmp > 0
	}
	// Same value: exclusive beats inclusive.
	return candidate.Op == OpGT && current.Op == OpGE
}

func tighterHigh(candidate, current *Rel) bool {
	cmp, ok := candidate.Val.Compare(current.Val)
	if !ok {
		return false
	}
	if cmp != 0 {
		return cmp < 0
	}
	return candidate.Op == OpLT && current.Op == OpLE
}
