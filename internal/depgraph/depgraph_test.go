package depgraph

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskflow/internal/metrics"
)

func edgeSet(g *Graph) map[[3]string]Strength {
	out := map[[3]string]Strength{}
	for _, e := range g.Edges {
		out[[3]string{e.From, e.To, string(e.Type)}] = e.Strength
	}
	return out
}

func TestBuildExtractsRelationships(t *testing.T) {
	files := []File{
		{Path: "src/app.ts", Content: "import { util } from './util'\nexport * from './types'\nconst lazy = import('./lazy')\n"},
		{Path: "src/util.ts", Content: "const fs = require('fs')\nconst h = require('./helpers/index')\n"},
		{Path: "src/types.ts", Content: "export interface Thing {}\n"},
		{Path: "src/lazy.js", Content: "export default 1\n"},
		{Path: "src/helpers/index.js", Content: "module.exports = {}\n"},
		{Path: "src/widget.ts", Content: "class Widget extends Base {}\n"},
		{Path: "src/base.ts", Content: "export class Base {}\n"},
		{Path: "styles/main.css", Content: "@import './reset.css';\n"},
		{Path: "styles/reset.css", Content: "* { margin: 0 }\n"},
		{Path: "config/app.json", Content: `{"entry": "src/app.ts", "name": "demo"}`},
	}

	g := NewBuilder(8).Build(files)
	edges := edgeSet(g)

	assert.Equal(t, StrengthStrong, edges[[3]string{"src/app.ts", "src/util.ts", "import"}])
	assert.Equal(t, StrengthStrong, edges[[3]string{"src/app.ts", "src/types.ts", "export"}])
	assert.Equal(t, StrengthMedium, edges[[3]string{"src/app.ts", "src/lazy.js", "import"}])
	assert.Equal(t, StrengthStrong, edges[[3]string{"src/util.ts", "src/helpers/index.js", "import"}])
	assert.Equal(t, StrengthMedium, edges[[3]string{"src/widget.ts", "src/base.ts", "inheritance"}])
	assert.Equal(t, StrengthStrong, edges[[3]string{"styles/main.css", "styles/reset.css", "import"}])
	assert.Equal(t, StrengthWeak, edges[[3]string{"config/app.json", "src/app.ts", "config"}])
	assert.False(t, g.HasCycles)

	for _, e := range g.Edges {
		assert.NotEqual(t, e.From, e.To, "self edge")
	}
}

func TestBuildPythonGoJava(t *testing.T) {
	files := []File{
		{Path: "pkg/main.py", Content: "from .models import User\nimport pkg.util\n"},
		{Path: "pkg/models.py", Content: "class User(Base):\n    pass\n"},
		{Path: "pkg/util.py", Content: "class Base:\n    pass\n"},
		{Path: "cmd/tool/main.go", Content: "package main\n\nimport (\n\t\"fmt\"\n\t\"example.com/proj/internal/store\"\n)\n"},
		{Path: "internal/store/store.go", Content: "package store\n"},
		{Path: "src/com/acme/App.java", Content: "import com.acme.model.Order;\npublic class App {}\n"},
		{Path: "src/com/acme/model/Order.java", Content: "public class Order {}\n"},
	}

	edges := edgeSet(NewBuilder(8).Build(files))

	assert.Contains(t, edges, [3]string{"pkg/main.py", "pkg/models.py", "import"})
	assert.Contains(t, edges, [3]string{"pkg/main.py", "pkg/util.py", "import"})
	assert.Contains(t, edges, [3]string{"pkg/models.py", "pkg/util.py", "inheritance"})
	assert.Equal(t, StrengthWeak, edges[[3]string{"cmd/tool/main.go", "internal/store/store.go", "reference"}])
	assert.Equal(t, StrengthWeak, edges[[3]string{"src/com/acme/App.java", "src/com/acme/model/Order.java", "reference"}])
}

func TestBuildDetectsCycle(t *testing.T) {
	files := []File{
		{Path: "a.js", Content: "import b from './b'\n"},
		{Path: "b.js", Content: "import a from './a'\n"},
		{Path: "c.js", Content: "import a from './a'\n"},
	}

	g := NewBuilder(8).Build(files)

	require.True(t, g.HasCycles)
	assert.Equal(t, [][]string{{"a.js", "b.js"}}, g.Cycles())
	assert.Equal(t, [][]string{{"a.js", "b.js"}, {"c.js"}}, g.Components)
	assert.Equal(t, 2, g.InDegree()["a.js"])
	assert.Equal(t, 0, g.InDegree()["c.js"])
}

func TestBuildIgnoresOutOfSetAndSelfReferences(t *testing.T) {
	files := []File{
		{Path: "a.js", Content: "import x from './missing'\nimport self from './a'\nimport react from 'react'\n"},
	}

	g := NewBuilder(8).Build(files)

	assert.Empty(t, g.Edges)
	assert.Equal(t, []string{"a.js"}, g.Nodes)
	assert.False(t, g.HasCycles)
}

func TestBuildIsDeterministic(t *testing.T) {
	files := []File{
		{Path: "z.ts", Content: "import a from './a'\nimport m from './m'\n"},
		{Path: "m.ts", Content: "import a from './a'\nimport z from './z'\n"},
		{Path: "a.ts", Content: "import m from './m'\n"},
	}
	reversed := []File{files[2], files[1], files[0]}

	b := NewBuilder(8)
	first := b.Build(files)
	b.ClearCache()
	second := b.Build(reversed)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a.ts", "m.ts", "z.ts"}, first.Nodes)
	assert.Equal(t, [][]string{{"a.ts", "m.ts", "z.ts"}}, first.Components)
}

func TestBuildDeduplicatesEdges(t *testing.T) {
	files := []File{
		{Path: "a.js", Content: "import b from './b'\nconst again = require('./b.js')\n"},
		{Path: "b.js", Content: ""},
	}

	g := NewBuilder(8).Build(files)

	assert.Len(t, g.Edges, 1)
}

func TestBuilderCache(t *testing.T) {
	_, m := metrics.NewRegistry()
	b := NewBuilder(2)
	b.SetMetrics(m)
	files := []File{{Path: "a.js", Content: "x"}}

	first := b.Build(files)
	second := b.Build(files)

	assert.Same(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GraphCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GraphCacheMisses))

	b.ClearCache()
	assert.Equal(t, 0, b.CacheLen())
	b.Build(files)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GraphCacheMisses))
}

func TestSignatureDependsOnContent(t *testing.T) {
	a := Signature([]File{{Path: "a", Content: "1"}, {Path: "b", Content: "2"}})
	b := Signature([]File{{Path: "b", Content: "2"}, {Path: "a", Content: "1"}})
	c := Signature([]File{{Path: "a", Content: "12"}, {Path: "b", Content: ""}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestResolvePath(t *testing.T) {
	set := map[string]bool{"src/lib.tsx": true, "src/ui/index.ts": true}
	exists := func(p string) bool { return set[p] }

	tests := []struct {
		importer, spec, want string
		ok                   bool
	}{
		{"src/app.ts", "./lib", "src/lib.tsx", true},
		{"src/app.ts", "./ui", "src/ui/index.ts", true},
		{"src/deep/x.ts", "../lib.tsx", "src/lib.tsx", true},
		{"src/app.ts", "./nope", "", false},
		{"app.ts", "../outside", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolvePath(tt.importer, tt.spec, exists)
		assert.Equal(t, tt.ok, ok, tt.spec)
		assert.Equal(t, tt.want, got, tt.spec)
	}
}

func TestExtractMarksRelativeReferences(t *testing.T) {
	refs := Extract("a.ts", "import x from './x'\nimport y from 'lodash'\n")

	require.Len(t, refs, 2)
	assert.True(t, refs[0].Relative)
	assert.Equal(t, 1, refs[0].Line)
	assert.False(t, refs[1].Relative)
}

func TestBuildMultiLineImports(t *testing.T) {
	files := []File{
		{Path: "a.ts", Content: "// entry\nimport {\n  first,\n  second,\n} from './z'\nexport {\n  third,\n} from './y'\n"},
		{Path: "z.ts", Content: "export const first = 1, second = 2\n"},
		{Path: "y.ts", Content: "export const third = 3\n"},
	}

	g := NewBuilder(8).Build(files)
	edges := edgeSet(g)

	assert.Equal(t, StrengthStrong, edges[[3]string{"a.ts", "z.ts", "import"}])
	assert.Equal(t, StrengthStrong, edges[[3]string{"a.ts", "y.ts", "export"}])
	assert.Equal(t, 1, g.InDegree()["z.ts"])
}

func TestExtractMultiLineImportLine(t *testing.T) {
	refs := Extract("main.ts", "const x = 1\nimport {\n  a,\n  b,\n} from './missing'\nimport './side'\n")
	require.Len(t, refs, 2)
	assert.Equal(t, "./missing", refs[0].Spec)
	assert.Equal(t, 2, refs[0].Line)
	assert.True(t, refs[0].Relative)
	assert.Equal(t, "./side", refs[1].Spec)
	assert.Equal(t, 6, refs[1].Line)
}
