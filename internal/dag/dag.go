// Package dag implements Kahn's topological layering, shared by the
// planning-phase gate's acyclicity check and the fleet orchestrator's wave
// construction.
package dag

import (
	"fmt"
	"sort"
)

// CyclicError reports that Layers could not place every node because a
// cycle exists among them. Residual holds the nodes that never reached
// in-degree zero, in the order they were supplied.
type CyclicError[T any] struct {
	Residual []T
}

func (e *CyclicError[T]) Error() string {
	return fmt.Sprintf("dag: cycle detected among %d node(s)", len(e.Residual))
}

// Layers computes topological layers over ids using Kahn's algorithm. deps
// maps each id to the ids it depends on; a dependency reference to an id not
// present in ids is ignored (per the fleet orchestrator's "silently ignore"
// rule for edges outside the working set). Within a layer, nodes are ordered
// by less for deterministic output. Returns a *CyclicError if any node never
// reaches in-degree zero.
func Layers[T comparable](ids []T, deps map[T][]T, less func(a, b T) bool) ([][]T, error) {
	idSet := make(map[T]struct{}, len(ids))
	inDegree := make(map[T]int, len(ids))
	dependents := make(map[T][]T, len(ids))

	for _, id := range ids {
		idSet[id] = struct{}{}
		inDegree[id] = 0
	}
	for _, id := range ids {
		for _, dep := range deps[id] {
			if _, ok := idSet[dep]; !ok {
				continue
			}
			dependents[dep] = append(dependents[dep], id)
			inDegree[id]++
		}
	}

	assigned := make(map[T]bool, len(ids))
	var layers [][]T

	for len(assigned) < len(ids) {
		var layer []T
		for _, id := range ids {
			if !assigned[id] && inDegree[id] == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			var residual []T
			for _, id := range ids {
				if !assigned[id] {
					residual = append(residual, id)
				}
			}
			return nil, &CyclicError[T]{Residual: residual}
		}

		sort.Slice(layer, func(i, j int) bool { return less(layer[i], layer[j]) })

		for _, id := range layer {
			assigned[id] = true
		}
		for _, id := range layer {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
			}
		}
		layers = append(layers, layer)
	}

	return layers, nil
}

// Acyclic reports whether ids/deps forms a DAG, without needing an ordering
// function — used by pure validators that only care about cycle presence.
func Acyclic[T comparable](ids []T, deps map[T][]T) bool {
	_, err := Layers(ids, deps, func(a, b T) bool { return false })
	return err == nil
}
