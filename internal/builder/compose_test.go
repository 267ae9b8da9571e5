package builder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qobs-build/qflags/internal/srcflags"
)

func strptr(s string) *string { return &s }

func testBaseline(tc Toolchain) Baseline {
	return Baseline{
		Name:               "demo",
		Toolchain:          tc,
		TargetPlatform:     Platform{OS: "linux", Arch: "amd64"},
		IncludePaths:       []string{"/pkg/include"},
		SystemIncludePaths: []string{"/pkg/third_party"},
		Macros: map[string]*string{
			"FOO": strptr("1"),
			"BAR": nil,
		},
		Args:      []string{"-O2"},
		BuildDir:  "/pkg/build",
		ObjectDir: "/pkg/build/QflagsFiles/demo.dir",
	}
}

func TestMacroFlags(t *testing.T) {
	macros := map[string]*string{
		"FOO":   strptr("1"),
		"BAR":   nil,
		"QUOTE": strptr(`"hi"`),
	}

	testCases := []struct {
		compiler string
		want     []string
	}{
		{"cl.exe", []string{"/DBAR", "/DFOO=1", `/DQUOTE="hi"`}},
		{"clang-cl", []string{"/DBAR", "/DFOO=1", `/DQUOTE="hi"`}},
		{"icx-cl", []string{"/DBAR", "/DFOO=1", `/DQUOTE="hi"`}},
		{"gcc", []string{"-DBAR", "-DFOO=1", `-DQUOTE="hi"`}},
		{"clang++", []string{"-DBAR", "-DFOO=1", `-DQUOTE="hi"`}},
		{"icpx", []string{"-DBAR", "-DFOO=1", `-DQUOTE="hi"`}},
	}

	for _, tc := range testCases {
		t.Run(tc.compiler, func(t *testing.T) {
			assert.Equal(t, tc.want, MacroFlags(NewToolchain(tc.compiler, tc.compiler), macros))
		})
	}
}

func TestMacroFlagsEmpty(t *testing.T) {
	assert.Empty(t, MacroFlags(NewToolchain("gcc", "g++"), nil))
}

func TestComposeArgsOrder(t *testing.T) {
	e := srcflags.New([]srcflags.File{"/pkg/src/a.c", "/pkg/src/b.c"})
	fs, err := e.ForSourceFile("/pkg/src/a.c")
	require.NoError(t, err)
	require.NoError(t, fs.Add("-Wall"))
	buckets, err := e.Finalize()
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	inv := Compose(testBaseline(NewToolchain("gcc", "g++")), buckets[0])
	assert.Equal(t, "compile-demo-sources0", inv.Name)
	assert.Equal(t, "sources0", inv.Bucket)
	assert.Equal(t, []string{"/pkg/src/a.c"}, inv.Files)
	assert.Equal(t, []string{"-O2", "-Wall", "-DBAR", "-DFOO=1"}, inv.Args)
	assert.Equal(t, Platform{OS: "linux", Arch: "amd64"}, inv.TargetPlatform)

	def := Compose(testBaseline(NewToolchain("gcc", "g++")), buckets[1])
	assert.Equal(t, []string{"/pkg/src/b.c"}, def.Files)
	assert.Equal(t, []string{"-O2", "-DBAR", "-DFOO=1"}, def.Args)
}

func TestComposeOutputIsolation(t *testing.T) {
	e := srcflags.New([]srcflags.File{"/pkg/a.c", "/pkg/b.c", "/pkg/c.c"})
	_, err := e.ForSourceFile("/pkg/a.c")
	require.NoError(t, err)
	_, err = e.ForSourceMatching(func(f srcflags.File) bool { return filepath.Base(f.String()) == "b.c" })
	require.NoError(t, err)
	buckets, err := e.Finalize()
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	base := testBaseline(NewToolchain("gcc", "g++"))
	seen := make(map[string]bool)
	for _, b := range buckets {
		inv := Compose(base, b)
		assert.Equal(t, filepath.Join("/pkg/build/tmp", "compile-demo-"+b.ID), inv.ObjectDir)
		assert.NotEqual(t, base.ObjectDir, inv.ObjectDir)
		assert.False(t, seen[inv.ObjectDir], "object dir %s reused", inv.ObjectDir)
		seen[inv.ObjectDir] = true
	}
}

func TestComposeDoesNotAliasBaseline(t *testing.T) {
	e := srcflags.New([]srcflags.File{"/pkg/a.c"})
	buckets, err := e.Finalize()
	require.NoError(t, err)

	base := testBaseline(NewToolchain("gcc", "g++"))
	inv := Compose(base, buckets[0])
	inv.Args[0] = "-O0"
	inv.IncludePaths[0] = "/elsewhere"

	assert.Equal(t, "-O2", base.Args[0])
	assert.Equal(t, "/pkg/include", base.IncludePaths[0])
}

func TestCommandArgs(t *testing.T) {
	inv := Invocation{
		IncludePaths:       []string{"/inc"},
		SystemIncludePaths: []string{"/sys"},
		Args:               []string{"-O2"},
	}

	inv.Toolchain = NewToolchain("gcc", "g++")
	assert.Equal(t, []string{"-I/inc", "-isystem", "/sys", "-O2"}, inv.CommandArgs())

	inv.Toolchain = NewToolchain("cl", "cl")
	assert.Equal(t, []string{"/I/inc", "/external:I/sys", "-O2"}, inv.CommandArgs())
}

func TestBaselineValidate(t *testing.T) {
	gcc := NewToolchain("gcc", "g++")

	testCases := []struct {
		name   string
		modify func(b *Baseline)
		errMsg string
	}{
		{"valid", func(b *Baseline) {}, ""},
		{"no name", func(b *Baseline) { b.Name = "" }, "component name is required"},
		{"no compiler", func(b *Baseline) { b.Toolchain = Toolchain{} }, "no C or C++ compiler"},
		{"no build dir", func(b *Baseline) { b.BuildDir = "" }, "build directory is required"},
		{"bad macro", func(b *Baseline) { b.Macros = map[string]*string{"1BAD": nil} }, `invalid macro name "1BAD"`},
		{"object dir in tmp", func(b *Baseline) { b.ObjectDir = "/pkg/build/tmp/x" }, "overlaps bucket outputs"},
		{"object dir is tmp", func(b *Baseline) { b.ObjectDir = "/pkg/build/tmp" }, "overlaps bucket outputs"},
		{"object dir beside tmp", func(b *Baseline) { b.ObjectDir = "/pkg/build/tmpfoo" }, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := testBaseline(gcc)
			tc.modify(&b)
			err := b.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestMacrosFromDefines(t *testing.T) {
	assert.Nil(t, macrosFromDefines(nil))

	macros := macrosFromDefines(map[string]string{"A": "", "B": "2"})
	require.Len(t, macros, 2)
	assert.Nil(t, macros["A"])
	require.NotNil(t, macros["B"])
	assert.Equal(t, "2", *macros["B"])
}
