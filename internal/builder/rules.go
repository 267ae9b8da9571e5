package builder

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/qobs-build/qflags/internal/msg"
	"github.com/qobs-build/qflags/internal/srcflags"
)

// FileEnv is what a `when` expression of a [[target.flags]] rule sees
type FileEnv struct {
	Path       string `expr:"path"` // relative to the package, slash separated
	Name       string `expr:"name"`
	Ext        string `expr:"ext"`
	Dir        string `expr:"dir"`
	TargetOS   string `expr:"target_os"`
	TargetArch string `expr:"target_arch"`
}

// matcher is the predicate of a glob/when rule. Predicates can't fail, so the
// first evaluation error is kept and reported once the rules have run.
type matcher struct {
	glob    string
	program *vm.Program
	basedir string
	env     ConfigEnv
	err     error
}

func newMatcher(rule FlagRule, basedir string, env ConfigEnv) (*matcher, error) {
	m := &matcher{glob: rule.Glob, basedir: basedir, env: env}
	if rule.When != "" {
		program, err := expr.Compile(rule.When, expr.Env(FileEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression %q: %w", rule.When, err)
		}
		m.program = program
	}
	return m, nil
}

func (m *matcher) fileEnv(f srcflags.File) FileEnv {
	rel, err := filepath.Rel(m.basedir, f.String())
	if err != nil {
		rel = filepath.Base(f.String())
	}
	rel = filepath.ToSlash(rel)
	return FileEnv{
		Path:       rel,
		Name:       path.Base(rel),
		Ext:        path.Ext(rel),
		Dir:        path.Dir(rel),
		TargetOS:   m.env.TargetOS,
		TargetArch: m.env.TargetArch,
	}
}

func (m *matcher) match(f srcflags.File) bool {
	fenv := m.fileEnv(f)

	if m.glob != "" {
		ok, err := doublestar.Match(m.glob, fenv.Path)
		if err != nil {
			m.fail(fmt.Errorf("glob %q: %w", m.glob, err))
			return false
		}
		if !ok {
			return false
		}
	}

	if m.program != nil {
		result, err := expr.Run(m.program, fenv)
		if err != nil {
			m.fail(fmt.Errorf("expression on %s: %w", fenv.Path, err))
			return false
		}
		ok, _ := result.(bool)
		return ok
	}

	return true
}

func (m *matcher) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

// ruleFlags is everything a rule adds to its bucket: its cflags followed by
// its defines in the toolchain's syntax
func ruleFlags(rule FlagRule, tc Toolchain) []string {
	flags := make([]string, 0, len(rule.Cflags)+len(rule.Defines))
	flags = append(flags, rule.Cflags...)
	return append(flags, MacroFlags(tc, macrosFromDefines(rule.Defines))...)
}

// applyRules registers the manifest rules with the engine, in manifest order
func applyRules(e *srcflags.Engine, rules []FlagRule, basedir string, env ConfigEnv, tc Toolchain) ([]*matcher, error) {
	var matchers []*matcher

	for i, rule := range rules {
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("target.flags[%d]: %w", i, err)
		}

		var sink *srcflags.FlagSet
		if rule.File != "" {
			file := rule.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(basedir, file)
			}

			var err error
			sink, err = e.ForSourceFile(srcflags.Canonical(file))
			if err != nil {
				return nil, fmt.Errorf("target.flags[%d]: %w", i, err)
			}
			msg.Verbose("rule %d: source file %s", i, rule.File)
		} else {
			m, err := newMatcher(rule, basedir, env)
			if err != nil {
				return nil, fmt.Errorf("target.flags[%d]: %w", i, err)
			}
			sink, err = e.ForSourceMatching(m.match)
			if err != nil {
				return nil, fmt.Errorf("target.flags[%d]: %w", i, err)
			}
			matchers = append(matchers, m)
			msg.Verbose("rule %d: sources matching glob=%q when=%q", i, rule.Glob, rule.When)
		}

		if err := sink.Add(ruleFlags(rule, tc)...); err != nil {
			return nil, fmt.Errorf("target.flags[%d]: %w", i, err)
		}
	}

	return matchers, nil
}

// matchErr returns the first error any predicate ran into
func matchErr(matchers []*matcher) error {
	for _, m := range matchers {
		if m.err != nil {
			return m.err
		}
	}
	return nil
}
