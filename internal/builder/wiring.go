package builder

import (
	"github.com/qobs-build/qflags/internal/builder/gen"
	"github.com/qobs-build/qflags/internal/srcflags"
)

// wireBuckets requests one compile action per bucket and registers the
// objects of each as an input of the component's link action. Buckets are
// wired in creation order, so the link inputs are stable across runs.
func wireBuckets(g gen.Generator, base Baseline, buckets []*srcflags.Bucket, basedir string, link gen.LinkAction) []Invocation {
	invocations := make([]Invocation, 0, len(buckets))

	for _, b := range buckets {
		inv := Compose(base, b)
		invocations = append(invocations, inv)

		g.AddCompile(gen.CompileAction{
			Name:      inv.Name,
			Basedir:   basedir,
			Sources:   inv.Files,
			CC:        inv.Toolchain.CC,
			CXX:       inv.Toolchain.CXX,
			MSVC:      inv.Toolchain.IsMSVC(),
			Args:      inv.CommandArgs(),
			ObjectDir: inv.ObjectDir,
		})
		link.Inputs = append(link.Inputs, gen.LinkInput{Action: inv.Name, Dir: inv.ObjectDir})
	}

	g.AddLink(link)
	return invocations
}
