package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgram(t *testing.T) {
	t.Run("parses a valid program", func(t *testing.T) {
		src := `{
			"inputs": ["orders"],
			"steps": [
				{"op": "select", "as": "picked", "input": "orders", "columns": ["id", "total"]}
			],
			"output": "picked"
		}`

		p, err := ParseProgram(src)
		require.NoError(t, err)
		assert.Equal(t, []string{"orders"}, p.Inputs)
		assert.Len(t, p.Steps, 1)
		assert.Equal(t, OpSelect, p.Steps[0].Op)
		assert.Equal(t, "picked", p.Output)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := ParseProgram(`{"inputs": [`)
		assert.Error(t, err)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		_, err := ParseProgram(`{"inputs": ["a"], "steps": [], "output": "a", "bogus": 1}`)
		assert.Error(t, err)
	})
}

func TestProgramCheck(t *testing.T) {
	valid := func() *Program {
		return &Program{
			Inputs: []string{"orders", "customers"},
			Steps: []Step{
				{Op: OpFilter, As: "recent", Input: "orders", Predicate: &Predicate{Column: "year", Cmp: "ge", Value: float64(2024)}},
				{Op: OpJoin, As: "joined", Left: "recent", Right: "customers", Kind: "inner", On: []JoinKey{{Left: "customer_id", Right: "id"}}},
			},
			Output: "joined",
		}
	}

	t.Run("accepts a valid program", func(t *testing.T) {
		assert.NoError(t, valid().Check())
	})

	t.Run("rejects no inputs", func(t *testing.T) {
		p := valid()
		p.Inputs = nil
		assert.Error(t, p.Check())
	})

	t.Run("rejects unbound step input", func(t *testing.T) {
		p := valid()
		p.Steps[0].Input = "missing"
		err := p.Check()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("rejects duplicate result name", func(t *testing.T) {
		p := valid()
		p.Steps[1].As = "recent"
		assert.Error(t, p.Check())
	})

	t.Run("rejects result name shadowing an input", func(t *testing.T) {
		p := valid()
		p.Steps[0].As = "orders"
		assert.Error(t, p.Check())
	})

	t.Run("rejects unknown op", func(t *testing.T) {
		p := valid()
		p.Steps[0].Op = "explode"
		assert.Error(t, p.Check())
	})

	t.Run("rejects unbound output", func(t *testing.T) {
		p := valid()
		p.Output = "nothing"
		assert.Error(t, p.Check())
	})

	t.Run("rejects join with unknown kind", func(t *testing.T) {
		p := valid()
		p.Steps[1].Kind = "cross"
		assert.Error(t, p.Check())
	})

	t.Run("rejects filter without predicate", func(t *testing.T) {
		p := valid()
		p.Steps[0].Predicate = nil
		assert.Error(t, p.Check())
	})

	t.Run("rejects aggregate with unknown function", func(t *testing.T) {
		p := &Program{
			Inputs: []string{"orders"},
			Steps: []Step{
				{Op: OpAggregate, As: "agg", Input: "orders", Aggregations: []Aggregation{{Func: "median", Column: "total", As: "m"}}},
			},
			Output: "agg",
		}
		assert.Error(t, p.Check())
	})

	t.Run("rejects union with fewer than two tables", func(t *testing.T) {
		p := &Program{
			Inputs: []string{"orders"},
			Steps:  []Step{{Op: OpUnion, As: "u", Tables: []string{"orders"}}},
			Output: "u",
		}
		assert.Error(t, p.Check())
	})

	t.Run("rejects limit with non-positive n", func(t *testing.T) {
		p := &Program{
			Inputs: []string{"orders"},
			Steps:  []Step{{Op: OpLimit, As: "l", Input: "orders", N: 0}},
			Output: "l",
		}
		assert.Error(t, p.Check())
	})
}
