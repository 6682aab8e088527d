package dataflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op names the supported transformation steps.
const (
	OpSelect    = "select"
	OpRename    = "rename"
	OpFilter    = "filter"
	OpJoin      = "join"
	OpUnion     = "union"
	OpAggregate = "aggregate"
	OpSort      = "sort"
	OpLimit     = "limit"
)

// Program is one generated transformation: named inputs, a sequence of
// steps that each bind a new name, and the name of the final result.
type Program struct {
	Inputs []string `json:"inputs"`
	Steps  []Step   `json:"steps"`
	Output string   `json:"output"`
}

// Step is one operation in a program. Op selects which fields apply;
// As binds the result under a new name for later steps.
type Step struct {
	Op    string `json:"op"`
	As    string `json:"as"`
	Input string `json:"input,omitempty"`

	// select
	Columns []string `json:"columns,omitempty"`
	// rename
	Rename map[string]string `json:"rename,omitempty"`
	// filter
	Predicate *Predicate `json:"predicate,omitempty"`
	// join
	Left  string    `json:"left,omitempty"`
	Right string    `json:"right,omitempty"`
	On    []JoinKey `json:"on,omitempty"`
	Kind  string    `json:"kind,omitempty"` // "inner" (default) or "left"
	// union
	Tables []string `json:"tables,omitempty"`
	// aggregate
	GroupBy      []string      `json:"group_by,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	// sort
	By []SortKey `json:"by,omitempty"`
	// limit
	N int `json:"n,omitempty"`
}

// JoinKey pairs an equality condition between two frames.
type JoinKey struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Aggregation is one aggregate output column.
type Aggregation struct {
	Func   string `json:"func"` // count, sum, avg, min, max
	Column string `json:"column,omitempty"`
	As     string `json:"as"`
}

// SortKey orders by one column.
type SortKey struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// Predicate is a closed boolean expression tree over row values. Exactly
// one of And/Or/Not or the leaf fields (Column, Cmp) is populated.
type Predicate struct {
	And []Predicate `json:"and,omitempty"`
	Or  []Predicate `json:"or,omitempty"`
	Not *Predicate  `json:"not,omitempty"`

	Column string `json:"column,omitempty"`
	Cmp    string `json:"cmp,omitempty"` // eq ne lt le gt ge contains is_null not_null
	Value  any    `json:"value,omitempty"`
}

// ParseProgram decodes a JSON program and checks its structure. The input
// must already be clean JSON (markdown fences stripped by the caller).
func ParseProgram(src string) (*Program, error) {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.DisallowUnknownFields()
	var p Program
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("program is not valid JSON: %w", err)
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Check validates program structure without executing it: every step must
// use a known op, reference only names already bound, and bind a fresh
// name; the output must be bound. Column-level problems are left to the
// interpreter, which sees real schemas.
func (p *Program) Check() error {
	if len(p.Inputs) == 0 {
		return fmt.Errorf("program declares no inputs")
	}
	if p.Output == "" {
		return fmt.Errorf("program declares no output")
	}

	bound := make(map[string]bool, len(p.Inputs)+len(p.Steps))
	for _, in := range p.Inputs {
		if in == "" {
			return fmt.Errorf("program has an empty input name")
		}
		bound[in] = true
	}

	for i, s := range p.Steps {
		if s.As == "" {
			return fmt.Errorf("step %d (%s) binds no name", i, s.Op)
		}
		if bound[s.As] {
			return fmt.Errorf("step %d rebinds name %q", i, s.As)
		}

		requireBound := func(name, role string) error {
			if name == "" {
				return fmt.Errorf("step %d (%s) is missing its %s", i, s.Op, role)
			}
			if !bound[name] {
				return fmt.Errorf("step %d (%s) references unknown name %q", i, s.Op, name)
			}
			return nil
		}

		switch s.Op {
		case OpSelect:
			if err := requireBound(s.Input, "input"); err != nil {
				return err
			}
			if len(s.Columns) == 0 {
				return fmt.Errorf("step %d (select) lists no columns", i)
			}
		case OpRename:
			if err := requireBound(s.Input, "input"); err != nil {
				return err
			}
			if len(s.Rename) == 0 {
				return fmt.Errorf("step %d (rename) has no mappings", i)
			}
		case OpFilter:
			if err := requireBound(s.Input, "input"); err != nil {
				return err
			}
			if s.Predicate == nil {
				return fmt.Errorf("step %d (filter) has no predicate", i)
			}
		case OpJoin:
			if err := requireBound(s.Left, "left input"); err != nil {
				return err
			}
			if err := requireBound(s.Right, "right input"); err != nil {
				return err
			}
			if len(s.On) == 0 {
				return fmt.Errorf("step %d (join) has no keys", i)
			}
			if s.Kind != "" && s.Kind != "inner" && s.Kind != "left" {
				return fmt.Errorf("step %d (join) has unknown kind %q", i, s.Kind)
			}
		case OpUnion:
			if len(s.Tables) < 2 {
				return fmt.Errorf("step %d (union) needs at least two tables", i)
			}
			for _, tbl := range s.Tables {
				if err := requireBound(tbl, "table"); err != nil {
					return err
				}
			}
		case OpAggregate:
			if err := requireBound(s.Input, "input"); err != nil {
				return err
			}
			if len(s.Aggregations) == 0 {
				return fmt.Errorf("step %d (aggregate) has no aggregations", i)
			}
			for _, agg := range s.Aggregations {
				switch agg.Func {
				case "count", "sum", "avg", "min", "max":
				default:
					return fmt.Errorf("step %d (aggregate) has unknown func %q", i, agg.Func)
				}
				if agg.As == "" {
					return fmt.Errorf("step %d (aggregate) has an unnamed aggregation", i)
				}
				if agg.Func != "count" && agg.Column == "" {
					return fmt.Errorf("step %d (aggregate) %s needs a column", i, agg.Func)
				}
			}
		case OpSort:
			if err := requireBound(s.Input, "input"); err != nil {
				return err
			}
			if len(s.By) == 0 {
				return fmt.Errorf("step %d (sort) has no keys", i)
			}
		case OpLimit:
			if err := requireBound(s.Input, "input"); err != nil {
				return err
			}
			if s.N <= 0 {
				return fmt.Errorf("step %d (limit) needs a positive n", i)
			}
		default:
			return fmt.Errorf("step %d has unknown op %q", i, s.Op)
		}

		bound[s.As] = true
	}

	if !bound[p.Output] {
		return fmt.Errorf("program output %q is never bound", p.Output)
	}
	return nil
}
