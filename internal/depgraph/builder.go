package depgraph

import (
	"encoding/binary"
	"encoding/hex"
	"path"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/taskflow/internal/metrics"
)

// DefaultCacheSize bounds the number of cached graphs.
const DefaultCacheSize = 128

// Builder builds graphs and memoizes them by content signature.
// It is safe for concurrent use.
type Builder struct {
	cache   *lru.Cache[string, *Graph]
	metrics *metrics.Metrics
}

// NewBuilder returns a Builder caching up to size graphs.
func NewBuilder(size int) *Builder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Graph](size)
	if err != nil {
		// only returned for non-positive sizes
		panic(err)
	}
	return &Builder{cache: cache}
}

// SetMetrics enables cache hit/miss counters.
func (b *Builder) SetMetrics(m *metrics.Metrics) { b.metrics = m }

// ClearCache drops every cached graph.
func (b *Builder) ClearCache() { b.cache.Purge() }

// CacheLen reports the number of cached graphs.
func (b *Builder) CacheLen() int { return b.cache.Len() }

// Build returns the graph for files. Identical input yields an identical
// graph; the returned value must not be modified.
func (b *Builder) Build(files []File) *Graph {
	sig := Signature(files)
	if g, ok := b.cache.Get(sig); ok {
		b.metrics.RecordGraphCache(true)
		return g
	}
	b.metrics.RecordGraphCache(false)

	g := build(files)
	b.cache.Add(sig, g)
	return g
}

// Signature is the blake3 digest of the sorted (path, content) pairs.
func Signature(files []File) string {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := blake3.New()
	var n [8]byte
	for _, f := range sorted {
		for _, s := range []string{f.Path, f.Content} {
			binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
			_, _ = h.Write(n[:])
			_, _ = h.Write([]byte(s))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func build(files []File) *Graph {
	contents := make(map[string]string, len(files))
	for _, f := range files {
		contents[path.Clean(f.Path)] = f.Content
	}
	nodes := make([]string, 0, len(contents))
	for p := range contents {
		nodes = append(nodes, p)
	}
	sort.Strings(nodes)

	inSet := func(p string) bool {
		_, ok := contents[p]
		return ok
	}

	declared := map[string][]string{}
	for _, n := range nodes {
		for _, name := range Declarations(contents[n]) {
			declared[name] = append(declared[name], n)
		}
	}

	type edgeKey struct {
		from, to string
		typ      RelationType
	}
	seen := map[edgeKey]bool{}
	var edges []Relationship

	for _, from := range nodes {
		for _, ref := range Extract(from, contents[from]) {
			for _, to := range resolveRef(from, ref, nodes, inSet, declared) {
				if to == from {
					continue
				}
				k := edgeKey{from, to, ref.Type}
				if seen[k] {
					continue
				}
				seen[k] = true
				edges = append(edges, Relationship{From: from, To: to, Type: ref.Type, Strength: ref.Strength})
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Type < b.Type
	})

	adj := make(map[string][]string, len(nodes))
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	components := stronglyConnected(nodes, adj)

	g := &Graph{Nodes: nodes, Edges: edges, Components: components}
	for _, c := range components {
		if len(c) > 1 {
			g.HasCycles = true
			break
		}
	}
	return g
}

func resolveRef(from string, ref Reference, nodes []string, inSet func(string) bool, declared map[string][]string) []string {
	var (
		to string
		ok bool
	)
	switch ref.kind {
	case specPath:
		if !ref.Relative {
			return nil
		}
		to, ok = ResolvePath(from, ref.Spec, inSet)
	case specPython:
		to, ok = resolvePython(from, ref.Spec, inSet)
	case specGoImport:
		to, ok = resolveGoImport(ref.Spec, nodes)
	case specJavaImport:
		to, ok = resolveJavaImport(ref.Spec, nodes)
	case specConfig:
		to, ok = resolveConfig(from, ref.Spec, inSet)
	case specClass:
		return declared[ref.Spec]
	}
	if !ok {
		return nil
	}
	return []string{to}
}
