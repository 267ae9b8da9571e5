package gen

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/qobs-build/qflags/internal/msg"
)

// CompileAction compiles the sources of one bucket into its own object directory
type CompileAction struct {
	Name      string
	Basedir   string
	Sources   []string
	CC, CXX   string
	MSVC      bool
	Args      []string
	ObjectDir string
}

// ObjectPath returns where the object file of src is written. Sources outside
// of Basedir go to a directory named after a hash of their own directory, so
// two of them with the same name don't share an object.
func (a CompileAction) ObjectPath(src string) string {
	rel, err := filepath.Rel(a.Basedir, src)
	if err != nil || !filepath.IsLocal(rel) {
		msg.Warn("source file %s is outside of base directory %s", src, a.Basedir)
		sum := sha256.Sum256([]byte(filepath.Dir(src)))
		rel = filepath.Join("_external", hex.EncodeToString(sum[:6]), filepath.Base(src))
	}
	ext := ".o"
	if a.MSVC {
		ext = ".obj"
	}
	return filepath.Join(a.ObjectDir, rel+ext)
}

// Compiler returns the compiler for src
func (a CompileAction) Compiler(src string) string {
	if IsCxx(src) {
		return a.CXX
	}
	return a.CC
}

// LinkInput adds the object files a compile action left in Dir to a link
type LinkInput struct {
	Action string
	Dir    string
}

// LinkAction links the objects of every bucket of a component
type LinkAction struct {
	Name     string // output file name, relative to the build directory
	IsLib    bool
	MSVC     bool
	Linker   string
	Archiver string
	Inputs   []LinkInput
	Ldflags  []string
}

type Generator interface {
	AddCompile(action CompileAction)
	AddLink(action LinkAction)
	Generate() string
	BuildFile() string
	Invoke(buildDir string) error
}
