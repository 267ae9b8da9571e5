package gen

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type NinjaGen struct {
	compiles []CompileAction
	links    []LinkAction
}

func (g *NinjaGen) AddCompile(action CompileAction) { g.compiles = append(g.compiles, action) }
func (g *NinjaGen) AddLink(action LinkAction)       { g.links = append(g.links, action) }

func (g *NinjaGen) BuildFile() string { return "build.ninja" }

var ninjaPathEscaper = strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")

func quote(s string) string { return ninjaPathEscaper.Replace(s) }

// shellArgs joins arguments for a ninja command variable
func shellArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		arg = strings.ReplaceAll(arg, "$", "$$")
		if strings.ContainsAny(arg, " \t\"") {
			arg = `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
		}
		quoted[i] = arg
	}
	return strings.Join(quoted, " ")
}

func (g *NinjaGen) Generate() string {
	var sb strings.Builder

	writeln(&sb, "ninja_required_version = 1.3")
	writeln(&sb)

	// gen rules
	write(&sb,
		`rule cc
  command = $cc $cflags -c $in -o $out
  description = CC $out
`)
	write(&sb,
		`rule cl
  command = $cc /nologo $cflags /c $in /Fo$out
  description = CL $out
`)
	write(&sb,
		`rule link
  command = $ld -o $out $in $ldflags
  description = LINK $out
`)
	write(&sb,
		`rule ar
  command = $ar rcs $out $in
  description = AR $out
`)
	write(&sb,
		`rule msvc_link
  command = $ld /nologo /OUT:$out $in $ldflags
  description = LINK $out
`)
	write(&sb,
		`rule msvc_lib
  command = $ar /nologo /OUT:$out $in
  description = LIB $out
`)
	writeln(&sb)

	// build object files, one block per compile action
	outputs := make(map[string][]string, len(g.compiles))
	for _, action := range g.compiles {
		rule := "cc"
		if action.MSVC {
			rule = "cl"
		}
		writeln(&sb, "# ", action.Name)
		cflags := shellArgs(action.Args)
		for _, src := range action.Sources {
			obj := action.ObjectPath(src)
			outputs[action.Name] = append(outputs[action.Name], obj)
			writeln(&sb, "build ", quote(obj), ": ", rule, " ", quote(src))
			writeln(&sb, "  cc = ", shellArgs([]string{action.Compiler(src)}))
			writeln(&sb, "  cflags = ", cflags)
		}
	}
	writeln(&sb)

	// ar/link
	for _, link := range g.links {
		var rule, tool string
		switch {
		case link.IsLib && link.MSVC:
			rule, tool = "msvc_lib", link.Archiver
		case link.IsLib:
			rule, tool = "ar", link.Archiver
		case link.MSVC:
			rule, tool = "msvc_link", link.Linker
		default:
			rule, tool = "link", link.Linker
		}

		write(&sb, "build ", quote(link.Name), ": ", rule)
		for _, input := range link.Inputs {
			for _, obj := range outputs[input.Action] {
				rel, err := filepath.Rel(input.Dir, obj)
				if err != nil || !IsObjectFile(rel) {
					continue
				}
				write(&sb, " ", quote(obj))
			}
		}
		writeln(&sb)

		if link.IsLib {
			writeln(&sb, "  ar = ", shellArgs([]string{tool}))
		} else {
			writeln(&sb, "  ld = ", shellArgs([]string{tool}))
			writeln(&sb, "  ldflags = ", shellArgs(link.Ldflags))
		}
	}

	return sb.String()
}

func (g *NinjaGen) Invoke(buildDir string) error {
	cmd := exec.Command("ninja", "-C", buildDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
