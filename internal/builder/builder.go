package builder

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/qflags/internal/builder/gen"
	"github.com/qobs-build/qflags/internal/msg"
	"github.com/qobs-build/qflags/internal/srcflags"
)

var (
	errCantRunLib = errors.New("can't run a library target (target.lib is true)")
)

const (
	GeneratorNinja  = "ninja"
	GeneratorQobs   = "qobs"
	GeneratorVS2022 = "vs2022"
)

type Builder struct {
	cfg     *Config
	basedir string
	env     ConfigEnv
	jobs    int
}

func NewBuilderInDirectory(path string) (*Builder, error) {
	var err error
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	env := NewConfigEnv(path)
	cfg, err := ParseConfigFromFile(filepath.Join(path, ManifestFile), env)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, basedir: path, env: env}, nil
}

// SetJobs limits parallel compile jobs of the native builder, 0 means one per CPU
func (b *Builder) SetJobs(n int) { b.jobs = n }

// Basedir is the package directory
func (b *Builder) Basedir() string { return b.basedir }

// outputName returns the desired artifact name for this package (e.g., `my_app.exe` or `libmy_lib.a`)
func (b *Builder) outputName() string {
	pkgName := b.cfg.Package.Name
	if b.cfg.Target.Lib {
		if runtime.GOOS == "windows" {
			return pkgName + ".lib"
		}
		return "lib" + pkgName + ".a"
	}
	if runtime.GOOS == "windows" {
		return pkgName + ".exe"
	}
	return pkgName
}

func (b *Builder) buildDir() string { return filepath.Join(b.basedir, "build") }

func (b *Builder) collectFiles(patterns []string, stripFilename bool) ([]string, error) {
	var files []string
	var stripmap map[string]struct{}
	if stripFilename {
		stripmap = map[string]struct{}{}
	}
	fsys := os.DirFS(b.basedir)

	var globparams []doublestar.GlobOption
	if !stripFilename {
		globparams = append(globparams, doublestar.WithFilesOnly())
	}

	for _, pat := range patterns {
		if filepath.IsAbs(pat) {
			files = append(files, filepath.Clean(pat))
			continue
		}
		matches, err := doublestar.Glob(fsys, pat, globparams...)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			absPath := filepath.Join(b.basedir, filepath.FromSlash(match))
			if stripFilename {
				if stat, err := os.Stat(absPath); err == nil && !stat.IsDir() {
					stripmap[filepath.Dir(absPath)] = struct{}{} // this is a file, we need directories
				} else {
					stripmap[absPath] = struct{}{}
				}
			} else {
				files = append(files, absPath)
			}
		}
	}

	if stripFilename {
		for dir := range stripmap {
			files = append(files, dir)
		}
		slices.Sort(files)
	}

	return files, nil
}

func createGenerator(generator, buildDir string) gen.Generator {
	switch generator {
	case GeneratorNinja:
		return &gen.NinjaGen{}
	case GeneratorQobs:
		return gen.NewQobsBuilder()
	case GeneratorVS2022:
		return gen.NewVS2022Gen(buildDir, findMSBuild())
	default:
		panic("createGenerator: unreachable")
	}
}

func (b *Builder) makeCflags(profile string, tc Toolchain) ([]string, error) {
	if prof, ok := b.cfg.Profile[profile]; ok {
		var cflags []string
		if opt := tc.OptFlag(prof.Opt()); opt != "" {
			cflags = append(cflags, opt)
		}
		return cflags, nil
	}
	return nil, fmt.Errorf("unknown profile %q, known profiles: %s", profile, strings.Join(b.cfg.Profiles(), ", "))
}

// Plan is the finished partition of a package's sources and everything
// needed to wire it into a generator
type Plan struct {
	Baseline Baseline
	Buckets  []*srcflags.Bucket
	Rules    []*srcflags.Rule // glob/when rules, in manifest order
	Link     gen.LinkAction
	basedir  string
}

// Plan collects the sources, applies the [[target.flags]] rules and composes
// the baseline compiler configuration
func (b *Builder) Plan(profile string, tc Toolchain) (*Plan, error) {
	sources, err := b.collectFiles(b.cfg.Target.Sources, false)
	if err != nil {
		return nil, fmt.Errorf("failed to collect sources for %s: %w", b.cfg.Package.Name, err)
	}
	headers, err := b.collectFiles(b.cfg.Target.Headers, true)
	if err != nil {
		return nil, fmt.Errorf("failed to collect headers for %s: %w", b.cfg.Package.Name, err)
	}
	systemHeaders, err := b.collectFiles(b.cfg.Target.SystemHeaders, true)
	if err != nil {
		return nil, fmt.Errorf("failed to collect system headers for %s: %w", b.cfg.Package.Name, err)
	}

	universe := make([]srcflags.File, len(sources))
	for i, src := range sources {
		universe[i] = srcflags.Canonical(src)
	}
	engine := srcflags.New(universe)

	matchers, err := applyRules(engine, b.cfg.Target.Flags, b.basedir, b.env, tc)
	if err != nil {
		return nil, err
	}
	buckets, err := engine.Finalize()
	if err != nil {
		return nil, err
	}
	if err := matchErr(matchers); err != nil {
		return nil, fmt.Errorf("failed to match sources: %w", err)
	}

	cflags, err := b.makeCflags(profile, tc)
	if err != nil {
		return nil, err
	}
	cflags = append(cflags, b.cfg.Target.Cflags...)

	base := Baseline{
		Name:               b.cfg.Package.Name,
		Toolchain:          tc,
		TargetPlatform:     b.env.Platform(),
		IncludePaths:       headers,
		SystemIncludePaths: systemHeaders,
		Macros:             macrosFromDefines(b.cfg.Target.Defines),
		Args:               cflags,
		BuildDir:           b.buildDir(),
		ObjectDir:          filepath.Join(b.buildDir(), "QflagsFiles", b.cfg.Package.Name+".dir"),
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}

	for _, bucket := range buckets {
		msg.Verbose("%s (%s): %d files, flags %v", bucket.ID, bucket.Kind, len(bucket.Files()), bucket.Flags())
	}

	hasCxx := slices.ContainsFunc(sources, gen.IsCxx)
	link := gen.LinkAction{
		Name:     b.outputName(),
		IsLib:    b.cfg.Target.Lib,
		MSVC:     tc.IsMSVC(),
		Linker:   tc.Linker(hasCxx),
		Archiver: tc.Archiver(),
		Ldflags:  tc.LinkFlags(b.cfg.Target.Links),
	}

	return &Plan{Baseline: base, Buckets: buckets, Rules: engine.Rules(), Link: link, basedir: b.basedir}, nil
}

// Invocations composes the compiler invocation of every bucket
func (p *Plan) Invocations() []Invocation {
	invocations := make([]Invocation, len(p.Buckets))
	for i, b := range p.Buckets {
		invocations[i] = Compose(p.Baseline, b)
	}
	return invocations
}

// Wire requests the compile and link actions of the plan from g
func (p *Plan) Wire(g gen.Generator) []Invocation {
	return wireBuckets(g, p.Baseline, p.Buckets, p.basedir, p.Link)
}

// Build plans the package and then invokes the generator (or builder)
func (b *Builder) Build(profile, generator string) error {
	buildDir := b.buildDir()
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return err
	}

	if err := b.cfg.RunBuildScript(b.env); err != nil {
		return err
	}

	var tc Toolchain
	if generator == GeneratorVS2022 {
		// msbuild brings its own cl.exe
		tc = NewToolchain("cl", "cl")
	} else {
		var err error
		if tc, err = FindToolchain(); err != nil {
			return err
		}
	}
	msg.Verbose("toolchain: cc=%s cxx=%s family=%s", tc.CC, tc.CXX, tc.Family)

	plan, err := b.Plan(profile, tc)
	if err != nil {
		return err
	}

	g := createGenerator(generator, buildDir)
	if qb, ok := g.(*gen.QobsBuilder); ok {
		qb.SetJobs(b.jobs)
	}
	plan.Wire(g)

	out := g.Generate()
	if out != "" {
		buildFile := filepath.Join(buildDir, g.BuildFile())
		if err = os.WriteFile(buildFile, []byte(out), 0644); err != nil {
			return err
		}
		msg.Info("wrote %s", buildFile)
	}

	return g.Invoke(buildDir)
}

func (b *Builder) BuildAndRun(args []string, profile, generator string) error {
	if b.cfg.Target.Lib {
		return errCantRunLib
	}

	if err := b.Build(profile, generator); err != nil {
		return err
	}

	cmd := exec.Command(filepath.Join(b.buildDir(), b.outputName()), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}
