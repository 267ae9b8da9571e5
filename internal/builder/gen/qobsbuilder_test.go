package gen

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileArgs(t *testing.T) {
	job := compileJob{src: "a.c", obj: "a.c.o", cflags: []string{"-O2", "-DX"}}
	assert.Equal(t, []string{"-O2", "-DX", "-c", "a.c", "-o", "a.c.o"}, compileArgs(job))

	job = compileJob{src: "a.c", obj: "a.c.obj", cflags: []string{"/O2", "/DX"}, msvc: true}
	assert.Equal(t, []string{"/nologo", "/O2", "/DX", "/c", "a.c", "/Foa.c.obj"}, compileArgs(job))
}

func TestLinkArgs(t *testing.T) {
	objs := []string{"a.o", "b.o"}

	assert.Equal(t, []string{"-o", "demo", "a.o", "b.o", "-lm"},
		linkArgs(linkJob{objs: objs, out: "demo", ldflags: []string{"-lm"}}))
	assert.Equal(t, []string{"rcs", "libdemo.a", "a.o", "b.o"},
		linkArgs(linkJob{objs: objs, out: "libdemo.a", isLib: true, ldflags: []string{"-lm"}}))
	assert.Equal(t, []string{"/nologo", "/OUT:demo.exe", "a.o", "b.o", "user32.lib"},
		linkArgs(linkJob{objs: objs, out: "demo.exe", msvc: true, ldflags: []string{"user32.lib"}}))
	assert.Equal(t, []string{"/nologo", "/OUT:demo.lib", "a.o", "b.o"},
		linkArgs(linkJob{objs: objs, out: "demo.lib", msvc: true, isLib: true}))
}

func TestIsStale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	obj := filepath.Join(dir, "a.c.o")
	touch(t, src)

	stale, err := isStale(src, obj)
	require.NoError(t, err)
	assert.True(t, stale, "missing object")

	touch(t, obj)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(src, old, old))
	stale, err = isStale(src, obj)
	require.NoError(t, err)
	assert.False(t, stale)

	require.NoError(t, os.Chtimes(obj, old.Add(-time.Hour), old.Add(-time.Hour)))
	stale, err = isStale(src, obj)
	require.NoError(t, err)
	assert.True(t, stale, "object older than source")

	_, err = isStale(filepath.Join(dir, "gone.c"), obj)
	assert.Error(t, err)
}

// upToDate records action as built with its current args
func upToDate(g *QobsBuilder, actions ...CompileAction) {
	for _, a := range actions {
		g.buildState[a.Name] = &BuildState{Args: a.Args, Sources: a.Sources}
	}
}

func oldSources(t *testing.T, paths ...string) {
	t.Helper()
	old := time.Now().Add(-time.Hour)
	for _, p := range paths {
		touch(t, p)
		require.NoError(t, os.Chtimes(p, old, old))
	}
}

func TestPlanCompilesPrunesMovedObjects(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.c")
	b := filepath.Join(dir, "b.c")
	oldSources(t, a, b)

	first := CompileAction{Name: "compile-demo-sources0", Basedir: dir, Sources: []string{a}, CC: "cc", ObjectDir: filepath.Join(dir, "build", "tmp", "compile-demo-sources0")}
	second := CompileAction{Name: "compile-demo-sources1", Basedir: dir, Sources: []string{b}, CC: "cc", ObjectDir: filepath.Join(dir, "build", "tmp", "compile-demo-sources1")}

	// b.c used to be compiled by the first action
	touch(t, first.ObjectPath(a))
	touch(t, first.ObjectPath(b))

	g := NewQobsBuilder()
	g.AddCompile(first)
	g.AddCompile(second)
	upToDate(g, first, second)

	jobs, rebuilt, err := g.planCompiles()
	require.NoError(t, err)

	require.Len(t, jobs, 1)
	assert.Equal(t, b, jobs[0].src)
	assert.Equal(t, second.ObjectPath(b), jobs[0].obj)
	// the first action lost an object, so its link must run again
	assert.Equal(t, map[string]bool{"compile-demo-sources0": true, "compile-demo-sources1": true}, rebuilt)

	_, err = os.Stat(first.ObjectPath(b))
	assert.True(t, os.IsNotExist(err), "stale object was not removed")
	_, err = os.Stat(first.ObjectPath(a))
	assert.NoError(t, err)
}

func TestPlanCompilesFlagChange(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.c")
	b := filepath.Join(dir, "b.c")
	oldSources(t, a, b)

	action := CompileAction{Name: "compile-demo-sources0", Basedir: dir, Sources: []string{a, b}, CC: "cc", Args: []string{"-O0"}, ObjectDir: filepath.Join(dir, "obj")}
	touch(t, action.ObjectPath(a))
	touch(t, action.ObjectPath(b))

	g := NewQobsBuilder()
	g.AddCompile(action)
	upToDate(g, action)

	jobs, rebuilt, err := g.planCompiles()
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Empty(t, rebuilt)

	// same objects, same sources, new flags for the bucket
	g.compiles[0].Args = []string{"-O3"}
	jobs, rebuilt, err = g.planCompiles()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, []string{"-O3"}, jobs[0].cflags)
	assert.True(t, rebuilt["compile-demo-sources0"])

	// no record of a previous build
	delete(g.buildState, action.Name)
	jobs, _, err = g.planCompiles()
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestPlanRelinksAfterPrune(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.c")
	oldSources(t, a)

	action := CompileAction{Name: "c0", Basedir: dir, Sources: []string{a}, CC: "cc", ObjectDir: filepath.Join(dir, "obj")}
	touch(t, action.ObjectPath(a))
	leftover := filepath.Join(action.ObjectDir, "b.c.o")
	touch(t, leftover)
	touch(t, filepath.Join(dir, "demo"))

	link := LinkAction{Name: "demo", Linker: "cc", Inputs: []LinkInput{{Action: "c0", Dir: action.ObjectDir}}}
	g := NewQobsBuilder()
	g.AddCompile(action)
	g.AddLink(link)
	upToDate(g, action)
	g.buildState["demo"] = &BuildState{Sources: []string{action.ObjectPath(a), leftover}}

	compileJobs, rebuilt, err := g.planCompiles()
	require.NoError(t, err)
	assert.Empty(t, compileJobs)

	linkJobs, err := g.planLinks(dir, rebuilt)
	require.NoError(t, err)
	require.Len(t, linkJobs, 1)
	assert.Equal(t, []string{action.ObjectPath(a)}, linkJobs[0].objs)
}

func TestPlanLinks(t *testing.T) {
	dir := t.TempDir()
	in0 := filepath.Join(dir, "tmp", "compile-demo-sources0")
	in1 := filepath.Join(dir, "tmp", "compile-demo-sources1")
	touch(t, filepath.Join(in0, "a.c.o"))
	touch(t, filepath.Join(in0, "a.c.d"))
	touch(t, filepath.Join(in1, "b.c.o"))
	objs := []string{filepath.Join(in0, "a.c.o"), filepath.Join(in1, "b.c.o")}

	g := NewQobsBuilder()
	g.AddLink(LinkAction{
		Name:    "demo",
		Linker:  "cc",
		Ldflags: []string{"-lm"},
		Inputs: []LinkInput{
			{Action: "compile-demo-sources0", Dir: in0},
			{Action: "compile-demo-sources1", Dir: in1},
			{Action: "compile-demo-sources2", Dir: filepath.Join(dir, "tmp", "compile-demo-sources2")},
		},
	})

	jobs, err := g.planLinks(dir, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, objs, jobs[0].objs)
	assert.Equal(t, "cc", jobs[0].tool)

	// up to date output and nothing rebuilt
	touch(t, filepath.Join(dir, "demo"))
	g.buildState["demo"] = &BuildState{Args: []string{"-lm"}, Sources: objs}
	jobs, err = g.planLinks(dir, map[string]bool{})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	jobs, err = g.planLinks(dir, map[string]bool{"compile-demo-sources1": true})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	g.buildState["demo"].Args = []string{"-lpthread"}
	jobs, err = g.planLinks(dir, map[string]bool{})
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "ldflags changed")
}

func TestBuildStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "obj")
	touch(t, filepath.Join(obj, "a.c.o"))

	g := NewQobsBuilder()
	g.stateFile = filepath.Join(dir, g.BuildFile())
	g.AddCompile(CompileAction{Name: "c0", Sources: []string{"a.c"}, Args: []string{"-O2"}, ObjectDir: obj})
	g.AddLink(LinkAction{Name: "demo", Ldflags: []string{"-lm"}, Inputs: []LinkInput{{Action: "c0", Dir: obj}}})
	require.NoError(t, g.updateBuildState())
	require.NoError(t, g.saveBuildState())

	loaded := NewQobsBuilder()
	loaded.stateFile = g.stateFile
	require.NoError(t, loaded.loadBuildState())
	assert.Equal(t, &BuildState{Args: []string{"-O2"}, Sources: []string{"a.c"}}, loaded.buildState["c0"])
	assert.Equal(t, &BuildState{Args: []string{"-lm"}, Sources: []string{filepath.Join(obj, "a.c.o")}}, loaded.buildState["demo"])

	missing := NewQobsBuilder()
	missing.stateFile = filepath.Join(dir, "nope.json")
	assert.NoError(t, missing.loadBuildState())
	assert.Empty(t, missing.buildState)
}
