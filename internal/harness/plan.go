package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// DependencyCycleError reports contracts that reference each other, so
// no deployment order exists.
type DependencyCycleError struct {
	Path []string // Cycle path: ["a", "b", "a"]
}

func (e *DependencyCycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " → ")
}

// dependencyGraph maps a contract name to the scenario contracts it
// references.
type dependencyGraph map[string][]string

// deploymentOrder returns the indexes of contracts in an order where every
// contract comes after the contracts it references. Contracts without a
// mutual dependency keep their declared order.
//
// References are read from the source without evaluating it: .name
// contract references, contract principal literals, use-trait and
// impl-trait. A source that does not parse has no dependencies; its
// deployment fails on its own.
func deploymentOrder(contracts []ContractSpec, ids map[string]value.Principal) ([]int, error) {
	graph := buildDependencyGraph(contracts, ids)

	for _, scc := range tarjanSCC(graph, contractNames(contracts)) {
		if len(scc) > 1 {
			return nil, &DependencyCycleError{Path: reconstructCyclePath(scc, graph)}
		}
	}

	index := make(map[string]int, len(contracts))
	for i, c := range contracts {
		index[c.Name] = i
	}
	// Kahn's algorithm, always taking the earliest declared ready contract.
	pending := make([]int, len(contracts))
	for i, c := range contracts {
		pending[i] = len(graph[c.Name])
	}
	dependents := make(map[string][]int)
	for _, c := range contracts {
		for _, dep := range graph[c.Name] {
			dependents[dep] = append(dependents[dep], index[c.Name])
		}
	}
	done := make([]bool, len(contracts))
	order := make([]int, 0, len(contracts))
	for len(order) < len(contracts) {
		next := -1
		for i := range contracts {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			// Unreachable after the cycle check.
			return nil, fmt.Errorf("no deployable contract left")
		}
		done[next] = true
		order = append(order, next)
		for _, d := range dependents[contracts[next].Name] {
			pending[d]--
		}
	}
	return order, nil
}

func contractNames(contracts []ContractSpec) []string {
	names := make([]string, len(contracts))
	for i, c := range contracts {
		names[i] = c.Name
	}
	return names
}

// buildDependencyGraph constructs the contract dependency graph. Edges
// point from a contract to the scenario contracts it references; self
// references and references to contracts outside the scenario are
// dropped.
func buildDependencyGraph(contracts []ContractSpec, ids map[string]value.Principal) dependencyGraph {
	byID := make(map[string]string, len(ids))
	for name, id := range ids {
		byID[id.ID()] = name
	}
	known := make(map[string]bool, len(contracts))
	for _, c := range contracts {
		known[c.Name] = true
	}

	graph := make(dependencyGraph, len(contracts))
	for _, c := range contracts {
		graph[c.Name] = []string{}
		parsed, err := ast.Parse(c.Name, c.Source)
		if err != nil {
			continue
		}
		var deps []string
		for _, expr := range parsed.Expressions {
			ast.Walk(expr, func(n *ast.Node) bool {
				switch n.Kind {
				case ast.KindContractRef:
					deps = append(deps, n.Name)
				case ast.KindLiteral:
					if p, ok := n.Value.(value.Principal); ok && p.IsContract() {
						if name, ok := byID[p.ID()]; ok {
							deps = append(deps, name)
						}
					}
				}
				return true
			})
		}
		slices.Sort(deps)
		for _, d := range slices.Compact(deps) {
			if d != c.Name && known[d] {
				graph[c.Name] = append(graph[c.Name], d)
			}
		}
	}
	return graph
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so the result is deterministic.
func tarjanSCC(graph dependencyGraph, nodes []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath follows edges inside an SCC from its first member
// until it returns there.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := map[string]bool{}
	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
