package dataflow

import (
	"fmt"
	"sort"
	"strings"
)

// Execute runs a checked program against named input frames and returns
// the output frame. Any column or type problem is reported with the step
// and name that caused it; nothing is approximated.
func Execute(p *Program, inputs map[string]*Frame) (*Frame, error) {
	env := make(map[string]*Frame, len(inputs)+len(p.Steps))
	for _, name := range p.Inputs {
		frame, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("input %q was not provided", name)
		}
		env[name] = frame
	}

	for i, step := range p.Steps {
		result, err := executeStep(&step, env)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		env[step.As] = result
	}

	out, ok := env[p.Output]
	if !ok {
		return nil, fmt.Errorf("output %q was never produced", p.Output)
	}
	return out, nil
}

func executeStep(s *Step, env map[string]*Frame) (*Frame, error) {
	switch s.Op {
	case OpSelect:
		return env[s.Input].Project(s.Columns)
	case OpRename:
		return executeRename(s, env[s.Input])
	case OpFilter:
		return executeFilter(s, env[s.Input])
	case OpJoin:
		return executeJoin(s, env[s.Left], env[s.Right])
	case OpUnion:
		return executeUnion(s, env)
	case OpAggregate:
		return executeAggregate(s, env[s.Input])
	case OpSort:
		return executeSort(s, env[s.Input])
	case OpLimit:
		return env[s.Input].Head(s.N), nil
	default:
		return nil, fmt.Errorf("unknown op %q", s.Op)
	}
}

func executeRename(s *Step, in *Frame) (*Frame, error) {
	columns := make([]Column, len(in.Columns))
	copy(columns, in.Columns)
	for from, to := range s.Rename {
		idx := in.ColumnIndex(from)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found", from)
		}
		columns[idx].Name = to
	}
	return &Frame{Columns: columns, Rows: in.Rows}, nil
}

func executeFilter(s *Step, in *Frame) (*Frame, error) {
	out := &Frame{Columns: in.Columns}
	for _, row := range in.Rows {
		keep, err := evalPredicate(s.Predicate, in, row)
		if err != nil {
			return nil, err
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func evalPredicate(p *Predicate, f *Frame, row []any) (bool, error) {
	switch {
	case len(p.And) > 0:
		for i := range p.And {
			ok, err := evalPredicate(&p.And[i], f, row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case len(p.Or) > 0:
		for i := range p.Or {
			ok, err := evalPredicate(&p.Or[i], f, row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case p.Not != nil:
		ok, err := evalPredicate(p.Not, f, row)
		return !ok, err
	}

	idx := f.ColumnIndex(p.Column)
	if idx < 0 {
		return false, fmt.Errorf("column %q not found", p.Column)
	}
	value := row[idx]

	switch p.Cmp {
	case "is_null":
		return value == nil, nil
	case "not_null":
		return value != nil, nil
	case "contains":
		str, ok := value.(string)
		want, ok2 := p.Value.(string)
		if !ok || !ok2 {
			return false, fmt.Errorf("contains requires string operands on column %q", p.Column)
		}
		return strings.Contains(str, want), nil
	case "eq", "ne", "lt", "le", "gt", "ge":
		if value == nil || p.Value == nil {
			// SQL-style: comparisons against null never match, except ne.
			return p.Cmp == "ne" && value != p.Value, nil
		}
		cmp, err := compareValues(value, p.Value)
		if err != nil {
			return false, fmt.Errorf("column %q: %w", p.Column, err)
		}
		switch p.Cmp {
		case "eq":
			return cmp == 0, nil
		case "ne":
			return cmp != 0, nil
		case "lt":
			return cmp < 0, nil
		case "le":
			return cmp <= 0, nil
		case "gt":
			return cmp > 0, nil
		case "ge":
			return cmp >= 0, nil
		}
	}
	return false, fmt.Errorf("unknown comparison %q", p.Cmp)
}

// compareValues orders two scalar values. Numbers compare numerically
// across int/float representations; strings lexically; bools with
// false < true. Mixed types are an error, not a silent false.
func compareValues(a, b any) (int, error) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, fmt.Errorf("cannot compare number with %T", b)
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		return strings.Compare(av, bv), nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare bool with %T", b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		default:
			return 1, nil
		}
	}
	return 0, fmt.Errorf("unsupported value type %T", a)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func executeJoin(s *Step, left, right *Frame) (*Frame, error) {
	leftIdx := make([]int, len(s.On))
	rightIdx := make([]int, len(s.On))
	rightKeyCols := make(map[int]bool, len(s.On))
	for i, key := range s.On {
		li := left.ColumnIndex(key.Left)
		if li < 0 {
			return nil, fmt.Errorf("join key %q not found in left input", key.Left)
		}
		ri := right.ColumnIndex(key.Right)
		if ri < 0 {
			return nil, fmt.Errorf("join key %q not found in right input", key.Right)
		}
		leftIdx[i] = li
		rightIdx[i] = ri
		rightKeyCols[ri] = true
	}

	// Output: all left columns, then right columns minus the join keys.
	// Right-side name collisions get a right_ prefix for determinism.
	leftNames := make(map[string]bool, len(left.Columns))
	columns := append([]Column(nil), left.Columns...)
	for _, c := range left.Columns {
		leftNames[c.Name] = true
	}
	var rightCols []int
	for i, c := range right.Columns {
		if rightKeyCols[i] {
			continue
		}
		if leftNames[c.Name] {
			c.Name = "right_" + c.Name
		}
		columns = append(columns, c)
		rightCols = append(rightCols, i)
	}

	// Hash the right side by key tuple.
	index := make(map[string][][]any, len(right.Rows))
	for _, row := range right.Rows {
		key := joinKeyOf(row, rightIdx)
		index[key] = append(index[key], row)
	}

	out := &Frame{Columns: columns}
	for _, lrow := range left.Rows {
		key := joinKeyOf(lrow, leftIdx)
		matches := index[key]
		if len(matches) == 0 {
			if s.Kind == "left" {
				combined := append(append([]any(nil), lrow...), make([]any, len(rightCols))...)
				out.Rows = append(out.Rows, combined)
			}
			continue
		}
		for _, rrow := range matches {
			combined := append([]any(nil), lrow...)
			for _, ri := range rightCols {
				combined = append(combined, rrow[ri])
			}
			out.Rows = append(out.Rows, combined)
		}
	}
	return out, nil
}

func joinKeyOf(row []any, indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("%v\x1f", row[idx])
	}
	return strings.Join(parts, "")
}

func executeUnion(s *Step, env map[string]*Frame) (*Frame, error) {
	first := env[s.Tables[0]]
	out := &Frame{Columns: append([]Column(nil), first.Columns...)}
	out.Rows = append(out.Rows, first.Rows...)

	for _, name := range s.Tables[1:] {
		frame := env[name]
		if len(frame.Columns) != len(out.Columns) {
			return nil, fmt.Errorf("union input %q has %d columns, expected %d", name, len(frame.Columns), len(out.Columns))
		}
		// Re-order rows by column name so unions are positional-safe.
		mapping := make([]int, len(out.Columns))
		for i, c := range out.Columns {
			idx := frame.ColumnIndex(c.Name)
			if idx < 0 {
				return nil, fmt.Errorf("union input %q is missing column %q", name, c.Name)
			}
			mapping[i] = idx
		}
		for _, row := range frame.Rows {
			mapped := make([]any, len(mapping))
			for i, idx := range mapping {
				mapped[i] = row[idx]
			}
			out.Rows = append(out.Rows, mapped)
		}
	}
	return out, nil
}

func executeAggregate(s *Step, in *Frame) (*Frame, error) {
	groupIdx := make([]int, len(s.GroupBy))
	for i, name := range s.GroupBy {
		idx := in.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("group_by column %q not found", name)
		}
		groupIdx[i] = idx
	}

	aggIdx := make([]int, len(s.Aggregations))
	for i, agg := range s.Aggregations {
		if agg.Func == "count" && agg.Column == "" {
			aggIdx[i] = -1
			continue
		}
		idx := in.ColumnIndex(agg.Column)
		if idx < 0 {
			return nil, fmt.Errorf("aggregation column %q not found", agg.Column)
		}
		aggIdx[i] = idx
	}

	type group struct {
		keys   []any
		states []aggState
	}
	groups := make(map[string]*group)
	var order []string // first-seen order for determinism

	for _, row := range in.Rows {
		key := joinKeyOf(row, groupIdx)
		g, ok := groups[key]
		if !ok {
			keys := make([]any, len(groupIdx))
			for i, idx := range groupIdx {
				keys[i] = row[idx]
			}
			states := make([]aggState, len(s.Aggregations))
			for i := range states {
				states[i].fn = s.Aggregations[i].Func
			}
			g = &group{keys: keys, states: states}
			groups[key] = g
			order = append(order, key)
		}
		for i := range g.states {
			var v any
			if aggIdx[i] >= 0 {
				v = row[aggIdx[i]]
			}
			if err := g.states[i].update(v, aggIdx[i] < 0); err != nil {
				return nil, fmt.Errorf("aggregation %q: %w", s.Aggregations[i].As, err)
			}
		}
	}

	columns := make([]Column, 0, len(s.GroupBy)+len(s.Aggregations))
	for _, idx := range groupIdx {
		columns = append(columns, in.Columns[idx])
	}
	for _, agg := range s.Aggregations {
		typ := "double"
		if agg.Func == "count" {
			typ = "bigint"
		}
		columns = append(columns, Column{Name: agg.As, Type: typ, Nullable: agg.Func != "count"})
	}

	out := &Frame{Columns: columns}
	for _, key := range order {
		g := groups[key]
		row := append([]any(nil), g.keys...)
		for i := range g.states {
			row = append(row, g.states[i].result())
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

type aggState struct {
	fn      string
	count   int64
	sum     float64
	min     any
	max     any
	touched bool
}

func (a *aggState) update(v any, countAll bool) error {
	if a.fn == "count" {
		if countAll || v != nil {
			a.count++
		}
		return nil
	}
	if v == nil {
		return nil
	}

	switch a.fn {
	case "sum", "avg":
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("%s requires numeric values, got %T", a.fn, v)
		}
		a.sum += f
		a.count++
	case "min", "max":
		if !a.touched {
			a.min, a.max = v, v
			a.touched = true
			return nil
		}
		cmpMin, err := compareValues(v, a.min)
		if err != nil {
			return err
		}
		if cmpMin < 0 {
			a.min = v
		}
		cmpMax, err := compareValues(v, a.max)
		if err != nil {
			return err
		}
		if cmpMax > 0 {
			a.max = v
		}
	}
	return nil
}

func (a *aggState) result() any {
	switch a.fn {
	case "count":
		return a.count
	case "sum":
		return a.sum
	case "avg":
		if a.count == 0 {
			return nil
		}
		return a.sum / float64(a.count)
	case "min":
		return a.min
	case "max":
		return a.max
	}
	return nil
}

func executeSort(s *Step, in *Frame) (*Frame, error) {
	indices := make([]int, len(s.By))
	for i, key := range s.By {
		idx := in.ColumnIndex(key.Column)
		if idx < 0 {
			return nil, fmt.Errorf("sort column %q not found", key.Column)
		}
		indices[i] = idx
	}

	out := &Frame{Columns: in.Columns, Rows: append([][]any(nil), in.Rows...)}
	var sortErr error
	sort.SliceStable(out.Rows, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		for i, idx := range indices {
			va, vb := out.Rows[a][idx], out.Rows[b][idx]
			if va == nil || vb == nil {
				if va == vb {
					continue
				}
				// Nulls sort first ascending, last descending.
				less := va == nil
				if s.By[i].Desc {
					less = !less
				}
				return less
			}
			cmp, err := compareValues(va, vb)
			if err != nil {
				sortErr = fmt.Errorf("sort column %q: %w", s.By[i].Column, err)
				return false
			}
			if cmp == 0 {
				continue
			}
			if s.By[i].Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}
