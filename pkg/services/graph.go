package services

import (
	"sort"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// topoSort orders pipeline nodes so every edge points forward. Ties are
// broken by ascending node id, which makes execution order deterministic
// for a given graph. Returns a CycleError when no complete order exists.
func topoSort(p *models.Pipeline) ([]string, error) {
	indegree := make(map[string]int, len(p.Nodes))
	for _, n := range p.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range p.Edges {
		indegree[e.ToNodeID]++
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(p.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := false
		for _, next := range p.Outgoing(id) {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(p.Nodes) {
		return nil, &apperrors.CycleError{NodeIDs: cycleNodes(p)}
	}
	return order, nil
}

// cycleNodes finds every node that sits on a directed cycle, by depth
// first search over the edge list. Nodes merely downstream of a cycle
// are not reported.
func cycleNodes(p *models.Pipeline) []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(p.Nodes))
	onCycle := make(map[string]bool)
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = inStack
		stack = append(stack, id)

		for _, next := range p.Outgoing(id) {
			switch state[next] {
			case unvisited:
				visit(next)
			case inStack:
				// Everything from next to the top of the stack is on
				// this cycle.
				for i := len(stack) - 1; i >= 0; i-- {
					onCycle[stack[i]] = true
					if stack[i] == next {
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
	}

	ids := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}

	result := make([]string, 0, len(onCycle))
	for id := range onCycle {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}
