package builder

import (
	"maps"
	"path/filepath"
	"slices"

	"github.com/qobs-build/qflags/internal/srcflags"
)

// Invocation is the compiler configuration of one bucket
type Invocation struct {
	Name               string // compile action name
	Bucket             string
	Toolchain          Toolchain
	TargetPlatform     Platform
	IncludePaths       []string
	SystemIncludePaths []string
	Args               []string
	Files              []string
	ObjectDir          string
}

// Compose clones the baseline into the invocation of one bucket: the bucket's
// flags and the translated macros are appended to the baseline args, and the
// objects go to a directory no other bucket writes to.
func Compose(base Baseline, b *srcflags.Bucket) Invocation {
	name := compileActionName(base.Name, b.ID)

	args := slices.Clone(base.Args)
	args = append(args, b.Flags()...)
	args = append(args, MacroFlags(base.Toolchain, base.Macros)...)

	files := make([]string, 0)
	for _, f := range b.Files() {
		files = append(files, f.String())
	}

	return Invocation{
		Name:               name,
		Bucket:             b.ID,
		Toolchain:          base.Toolchain,
		TargetPlatform:     base.TargetPlatform,
		IncludePaths:       slices.Clone(base.IncludePaths),
		SystemIncludePaths: slices.Clone(base.SystemIncludePaths),
		Args:               args,
		Files:              files,
		ObjectDir:          filepath.Join(base.tempDir(), name),
	}
}

// MacroFlags translates macros into compiler flags, sorted by name
func MacroFlags(tc Toolchain, macros map[string]*string) []string {
	prefix := tc.MacroPrefix()
	flags := make([]string, 0, len(macros))
	for _, name := range slices.Sorted(maps.Keys(macros)) {
		if value := macros[name]; value != nil {
			flags = append(flags, prefix+name+"="+*value)
		} else {
			flags = append(flags, prefix+name)
		}
	}
	return flags
}

// CommandArgs renders the include paths and args as compiler arguments
func (inv Invocation) CommandArgs() []string {
	args := make([]string, 0, len(inv.IncludePaths)+2*len(inv.SystemIncludePaths)+len(inv.Args))
	for _, dir := range inv.IncludePaths {
		if inv.Toolchain.IsMSVC() {
			args = append(args, "/I"+dir)
		} else {
			args = append(args, "-I"+dir)
		}
	}
	for _, dir := range inv.SystemIncludePaths {
		if inv.Toolchain.IsMSVC() {
			args = append(args, "/external:I"+dir)
		} else {
			args = append(args, "-isystem", dir)
		}
	}
	return append(args, inv.Args...)
}

func compileActionName(component, bucketID string) string {
	return "compile-" + component + "-" + bucketID
}
