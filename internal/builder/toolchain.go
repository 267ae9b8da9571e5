package builder

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// TODO: zig cc
var (
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc", "tcc", "cl"}
	commonCxxCompilers = []string{"clang++", "g++", "clang", "gcc", "icpx", "icx", "icpc", "icc", "cl"}
)

var errNoCompiler = errors.New("no C or C++ compiler found, set CC or CXX")

// Family groups compilers that share a command line convention
type Family int

const (
	FamilyUnknown Family = iota
	FamilyGCC
	FamilyClang
	FamilyIntel
	FamilyTCC
	// FamilyMSVC covers cl.exe and the drivers that mimic its command line
	FamilyMSVC
)

func (f Family) String() string {
	switch f {
	case FamilyGCC:
		return "gcc"
	case FamilyClang:
		return "clang"
	case FamilyIntel:
		return "intel"
	case FamilyTCC:
		return "tcc"
	case FamilyMSVC:
		return "msvc"
	default:
		return "unknown"
	}
}

// DetectFamily guesses the compiler family from the executable name, e.g.
// `/usr/bin/x86_64-linux-gnu-g++-13` or `C:\...\cl.exe`
func DetectFamily(compiler string) Family {
	name := strings.ToLower(filepath.Base(compiler))
	name = strings.TrimSuffix(name, ".exe")

	switch {
	case name == "cl", name == "clang-cl", name == "icx-cl":
		return FamilyMSVC
	case strings.Contains(name, "clang"):
		return FamilyClang
	case strings.Contains(name, "g++"), strings.Contains(name, "gcc"), name == "c++", name == "cc":
		return FamilyGCC
	case strings.HasPrefix(name, "icx"), strings.HasPrefix(name, "icpx"),
		strings.HasPrefix(name, "icc"), strings.HasPrefix(name, "icpc"):
		return FamilyIntel
	case name == "tcc":
		return FamilyTCC
	default:
		return FamilyUnknown
	}
}

// Platform identifies the platform a package is compiled for
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) String() string { return p.OS + "-" + p.Arch }

// Toolchain is the compiler pair a package is built with
type Toolchain struct {
	CC     string
	CXX    string
	Family Family
}

// NewToolchain builds a toolchain from compiler paths, taking the family from
// the C++ compiler when there is one
func NewToolchain(cc, cxx string) Toolchain {
	if cc == "" {
		cc = cxx
	}
	if cxx == "" {
		cxx = cc
	}
	return Toolchain{CC: cc, CXX: cxx, Family: DetectFamily(cxx)}
}

// FindToolchain locates a C and a C++ compiler on the system
func FindToolchain() (Toolchain, error) {
	cc, cxx := findCompiler(false), findCompiler(true)
	if cc == "" && cxx == "" {
		if cl := findMSVC(); cl != "" {
			return NewToolchain(cl, cl), nil
		}
		return Toolchain{}, errNoCompiler
	}
	return NewToolchain(cc, cxx), nil
}

func (tc Toolchain) IsMSVC() bool { return tc.Family == FamilyMSVC }

// MacroPrefix is the flag that defines a preprocessor macro
func (tc Toolchain) MacroPrefix() string {
	if tc.IsMSVC() {
		return "/D"
	}
	return "-D"
}

// OptFlag translates a profile opt-level into a compiler flag
func (tc Toolchain) OptFlag(level string) string {
	if level == "" {
		return ""
	}
	if !tc.IsMSVC() {
		return "-O" + level
	}
	switch level {
	case "0":
		return "/Od"
	case "1", "s", "z":
		return "/O1"
	default:
		return "/O2"
	}
}

// LinkFlags translates library names into linker arguments
func (tc Toolchain) LinkFlags(libs []string) []string {
	flags := make([]string, 0, len(libs))
	for _, lib := range libs {
		if tc.IsMSVC() {
			if !strings.HasSuffix(lib, ".lib") {
				lib += ".lib"
			}
			flags = append(flags, lib)
		} else {
			flags = append(flags, "-l"+lib)
		}
	}
	return flags
}

// Linker returns the program that links an executable
func (tc Toolchain) Linker(isCxx bool) string {
	if tc.IsMSVC() {
		return tc.sibling("link")
	}
	if isCxx {
		return tc.CXX
	}
	return tc.CC
}

// Archiver returns the program that packs a static library
func (tc Toolchain) Archiver() string {
	if tc.IsMSVC() {
		return tc.sibling("lib")
	}
	if ar := os.Getenv("AR"); ar != "" {
		return ar
	}
	return "ar"
}

// sibling finds an MSVC tool next to cl.exe, falling back to PATH
func (tc Toolchain) sibling(tool string) string {
	if filepath.IsAbs(tc.CXX) {
		path := filepath.Join(filepath.Dir(tc.CXX), tool+".exe")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return tool
}

// findCompiler attempts to find a suitable C or C++ compiler on the system
func findCompiler(needCxx bool) string {
	cc := os.Getenv("CC")
	cxx := os.Getenv("CXX")

	if needCxx && cxx != "" {
		return cxx
	}
	if !needCxx && cc != "" {
		return cc
	}

	if cxx != "" {
		return cxx
	}
	if cc != "" {
		return cc
	}

	var compilersToTry []string
	if needCxx {
		compilersToTry = commonCxxCompilers
	} else {
		compilersToTry = commonCCompilers
	}

	for _, compiler := range compilersToTry {
		path, err := exec.LookPath(compiler)
		if err == nil {
			return path
		}
	}

	return ""
}
