package builder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qobs-build/qflags/internal/srcflags"
)

const testBasedir = "/pkg"

func srcFiles(rels ...string) []srcflags.File {
	out := make([]srcflags.File, len(rels))
	for i, rel := range rels {
		out[i] = srcflags.Canonical(filepath.Join(testBasedir, rel))
	}
	return out
}

func TestMatcher(t *testing.T) {
	env := testEnv("linux")

	testCases := []struct {
		name string
		rule FlagRule
		file string
		want bool
	}{
		{"glob hit", FlagRule{Glob: "src/fast/**"}, "src/fast/x/a.c", true},
		{"glob miss", FlagRule{Glob: "src/fast/**"}, "src/slow/a.c", false},
		{"when ext", FlagRule{When: `ext == ".cc"`}, "src/a.cc", true},
		{"when name", FlagRule{When: `name startsWith "gen_"`}, "src/gen_x.c", true},
		{"when dir", FlagRule{When: `dir == "src"`}, "src/sub/a.c", false},
		{"when os", FlagRule{When: `target_os == "linux"`}, "a.c", true},
		{"glob and when", FlagRule{Glob: "src/**", When: `ext == ".c"`}, "src/a.cc", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := newMatcher(tc.rule, testBasedir, env)
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.match(srcFiles(tc.file)[0]))
			assert.NoError(t, m.err)
		})
	}
}

func TestMatcherBadExpression(t *testing.T) {
	_, err := newMatcher(FlagRule{When: `ext +`}, testBasedir, testEnv("linux"))
	assert.Error(t, err)

	// not a boolean
	_, err = newMatcher(FlagRule{When: `ext`}, testBasedir, testEnv("linux"))
	assert.Error(t, err)
}

func TestApplyRules(t *testing.T) {
	e := srcflags.New(srcFiles("src/main.c", "src/fast/a.c", "src/fast/b.cc", "src/util.c"))
	gcc := NewToolchain("gcc", "g++")

	matchers, err := applyRules(e, []FlagRule{
		{Glob: "src/fast/**", Cflags: []string{"-O3"}},
		{File: "src/main.c", Cflags: []string{"-Wall"}, Defines: map[string]string{"MAIN": "", "V": "2"}},
		{When: `ext == ".c"`, Cflags: []string{"-std=c11"}},
	}, testBasedir, testEnv("linux"), gcc)
	require.NoError(t, err)
	require.Len(t, matchers, 2)

	buckets, err := e.Finalize()
	require.NoError(t, err)
	require.NoError(t, matchErr(matchers))

	// singleton, two claim buckets, default
	require.Len(t, buckets, 4)

	main := buckets[0]
	assert.Equal(t, srcflags.KindSingleton, main.Kind)
	assert.Equal(t, srcFiles("src/main.c"), main.Files())
	// its own flags, then the rules that match it
	assert.Equal(t, []string{"-Wall", "-DMAIN", "-DV=2", "-std=c11"}, main.Flags())

	fast := buckets[1]
	assert.Equal(t, srcFiles("src/fast/a.c", "src/fast/b.cc"), fast.Files())
	assert.Equal(t, []string{"-O3"}, fast.Flags())

	c := buckets[2]
	assert.Equal(t, srcFiles("src/util.c"), c.Files())
	assert.Equal(t, []string{"-std=c11"}, c.Flags())

	assert.Equal(t, srcflags.KindDefault, buckets[3].Kind)
	assert.Empty(t, buckets[3].Files())
}

func TestApplyRulesMsvcDefines(t *testing.T) {
	e := srcflags.New(srcFiles("a.c"))
	_, err := applyRules(e, []FlagRule{
		{File: "a.c", Defines: map[string]string{"X": "1", "Y": ""}},
	}, testBasedir, testEnv("windows"), NewToolchain("cl", "cl"))
	require.NoError(t, err)

	buckets, err := e.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"/DX=1", "/DY"}, buckets[0].Flags())
}

func TestApplyRulesUnknownFile(t *testing.T) {
	e := srcflags.New(srcFiles("a.c"))
	_, err := applyRules(e, []FlagRule{{File: "missing.c"}}, testBasedir, testEnv("linux"), NewToolchain("gcc", "g++"))
	require.Error(t, err)
	assert.ErrorIs(t, err, srcflags.ErrNotFound)
	assert.Contains(t, err.Error(), "target.flags[0]")
}

func TestApplyRulesSameFileTwice(t *testing.T) {
	e := srcflags.New(srcFiles("a.c"))
	_, err := applyRules(e, []FlagRule{
		{File: "a.c", Cflags: []string{"-Wall"}},
		{File: "./a.c", Cflags: []string{"-Wextra"}},
	}, testBasedir, testEnv("linux"), NewToolchain("gcc", "g++"))
	require.NoError(t, err)

	buckets, err := e.Finalize()
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, []string{"-Wall", "-Wextra"}, buckets[0].Flags())
}

func TestApplyRulesInvalidRule(t *testing.T) {
	e := srcflags.New(srcFiles("a.c"))
	_, err := applyRules(e, []FlagRule{{Cflags: []string{"-O3"}}}, testBasedir, testEnv("linux"), NewToolchain("gcc", "g++"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.flags[0]")
}
