// Package depgraph extracts textual relationships between files of a change
// set and finds circular dependencies among them.
package depgraph

import "sort"

// RelationType classifies an edge.
type RelationType string

const (
	RelImport      RelationType = "import"
	RelExport      RelationType = "export"
	RelInheritance RelationType = "inheritance"
	RelReference   RelationType = "reference"
	RelConfig      RelationType = "config"
)

// Strength is how certain the extraction is.
type Strength string

const (
	StrengthStrong Strength = "strong"
	StrengthMedium Strength = "medium"
	StrengthWeak   Strength = "weak"
)

// File is one node's path and content.
type File struct {
	Path    string
	Content string
}

// Relationship is a directed edge: From depends on To.
type Relationship struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Type     RelationType `json:"type"`
	Strength Strength     `json:"strength"`
}

// Graph is immutable once built; cached instances are shared.
type Graph struct {
	Nodes      []string       `json:"nodes"`
	Edges      []Relationship `json:"edges"`
	Components [][]string     `json:"components"`
	HasCycles  bool           `json:"hasCycles"`
}

// Cycles returns the components with more than one member.
func (g *Graph) Cycles() [][]string {
	var out [][]string
	for _, c := range g.Components {
		if len(c) > 1 {
			out = append(out, c)
		}
	}
	return out
}

// InDegree counts, per node, the distinct other nodes referencing it.
func (g *Graph) InDegree() map[string]int {
	deg := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		deg[n] = 0
	}
	seen := map[[2]string]bool{}
	for _, e := range g.Edges {
		k := [2]string{e.From, e.To}
		if !seen[k] {
			seen[k] = true
			deg[e.To]++
		}
	}
	return deg
}

// ComponentIndex maps each node to the index of its component.
func (g *Graph) ComponentIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, c := range g.Components {
		for _, n := range c {
			idx[n] = i
		}
	}
	return idx
}

// DependsOn lists the nodes n has edges to.
func (g *Graph) DependsOn(n string) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range g.Edges {
		if e.From == n && !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

// stronglyConnected runs Tarjan's algorithm. Components are sorted
// internally and ordered by their first member.
func stronglyConnected(nodes []string, adj map[string][]string) [][]string {
	var (
		index   = 0
		indices = make(map[string]int, len(nodes))
		lowlink = make(map[string]int, len(nodes))
		onStack = make(map[string]bool, len(nodes))
		stack   []string
		result  [][]string
		connect func(v string)
	)

	connect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Strings(comp)
			result = append(result, comp)
		}
	}

	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			connect(n)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i][0] < result[j][0] })
	return result
}
