package apply

import (
	"sort"

	"github.com/felixgeelhaar/taskflow/internal/depgraph"
	"github.com/felixgeelhaar/taskflow/internal/patch"
)

// Order sorts changes so that files referenced by more of their peers are
// written first. Members of a cycle form one unit and stay contiguous.
// Ties are broken by path.
func Order(changes []patch.FileChange, g *depgraph.Graph) []patch.FileChange {
	deg := g.InDegree()
	comp := g.ComponentIndex()

	type unit struct {
		members []patch.FileChange
		score   int
		first   string
	}
	units := map[int]*unit{}
	var loose []*unit

	for _, c := range changes {
		idx, ok := comp[c.Path]
		if !ok {
			loose = append(loose, &unit{members: []patch.FileChange{c}, score: deg[c.Path], first: c.Path})
			continue
		}
		u := units[idx]
		if u == nil {
			u = &unit{first: c.Path, score: -1}
			units[idx] = u
		}
		u.members = append(u.members, c)
		u.score = max(u.score, deg[c.Path])
		if c.Path < u.first {
			u.first = c.Path
		}
	}

	all := loose
	for _, u := range units {
		sort.SliceStable(u.members, func(i, j int) bool {
			a, b := u.members[i].Path, u.members[j].Path
			if deg[a] != deg[b] {
				return deg[a] > deg[b]
			}
			return a < b
		})
		all = append(all, u)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].first < all[j].first
	})

	out := make([]patch.FileChange, 0, len(changes))
	for _, u := range all {
		out = append(out, u.members...)
	}
	return out
}
