package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFamily(t *testing.T) {
	testCases := []struct {
		compiler string
		want     Family
	}{
		{"gcc", FamilyGCC},
		{"/usr/bin/x86_64-linux-gnu-g++-13", FamilyGCC},
		{"cc", FamilyGCC},
		{"c++", FamilyGCC},
		{"clang", FamilyClang},
		{"/opt/llvm/bin/clang++-18", FamilyClang},
		{"clang-cl", FamilyMSVC},
		{"CL.EXE", FamilyMSVC},
		{"/opt/msvc/bin/cl.exe", FamilyMSVC},
		{"icx-cl", FamilyMSVC},
		{"icx", FamilyIntel},
		{"icpx", FamilyIntel},
		{"tcc", FamilyTCC},
		{"zig", FamilyUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.compiler, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectFamily(tc.compiler))
		})
	}
}

func TestNewToolchainFillsMissingCompiler(t *testing.T) {
	tc := NewToolchain("", "clang++")
	assert.Equal(t, "clang++", tc.CC)
	assert.Equal(t, FamilyClang, tc.Family)

	tc = NewToolchain("cl", "")
	assert.Equal(t, "cl", tc.CXX)
	assert.True(t, tc.IsMSVC())
	assert.Equal(t, "/D", tc.MacroPrefix())
}

func TestOptFlag(t *testing.T) {
	gcc := NewToolchain("gcc", "g++")
	msvc := NewToolchain("cl", "cl")

	assert.Equal(t, "", gcc.OptFlag(""))
	assert.Equal(t, "-O3", gcc.OptFlag("3"))
	assert.Equal(t, "-Os", gcc.OptFlag("s"))

	assert.Equal(t, "", msvc.OptFlag(""))
	assert.Equal(t, "/Od", msvc.OptFlag("0"))
	assert.Equal(t, "/O1", msvc.OptFlag("s"))
	assert.Equal(t, "/O2", msvc.OptFlag("3"))
}

func TestLinkFlags(t *testing.T) {
	assert.Equal(t, []string{"-lm", "-lpthread"}, NewToolchain("gcc", "g++").LinkFlags([]string{"m", "pthread"}))
	assert.Equal(t, []string{"user32.lib", "gdi32.lib"}, NewToolchain("cl", "cl").LinkFlags([]string{"user32", "gdi32.lib"}))
}

func TestLinkerAndArchiver(t *testing.T) {
	t.Setenv("AR", "")
	tc := NewToolchain("gcc", "g++")
	assert.Equal(t, "gcc", tc.Linker(false))
	assert.Equal(t, "g++", tc.Linker(true))
	assert.Equal(t, "ar", tc.Archiver())

	t.Setenv("AR", "llvm-ar")
	assert.Equal(t, "llvm-ar", tc.Archiver())

	msvc := NewToolchain("cl", "cl")
	assert.Equal(t, "link", msvc.Linker(true))
	assert.Equal(t, "lib", msvc.Archiver())
}
