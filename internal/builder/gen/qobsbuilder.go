package gen

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/qobs-build/qflags/internal/msg"
	"golang.org/x/sync/errgroup"
)

// BuildState is what the previous build of a compile action or a link used.
// For a compile action Sources are its source files, for a link they are the
// objects that went into it.
type BuildState struct {
	Args    []string `json:"args,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// compileJob represents a single compilation job
type compileJob struct {
	action string
	src    string
	obj    string
	cflags []string
	msvc   bool
	cc     string
}

// linkJob represents a linking job
type linkJob struct {
	objs    []string
	out     string
	ldflags []string
	isLib   bool
	msvc    bool
	tool    string
}

// QobsBuilder runs the compile actions itself, in parallel, then links
type QobsBuilder struct {
	compiles   []CompileAction
	links      []LinkAction
	jobs       int
	stateFile  string
	buildState map[string]*BuildState // compile action or link name -> state
}

func NewQobsBuilder() *QobsBuilder {
	return &QobsBuilder{
		jobs:       runtime.NumCPU(),
		buildState: make(map[string]*BuildState),
	}
}

// SetJobs limits how many compile jobs run at once
func (g *QobsBuilder) SetJobs(n int) {
	if n > 0 {
		g.jobs = n
	}
}

func (g *QobsBuilder) AddCompile(action CompileAction) { g.compiles = append(g.compiles, action) }
func (g *QobsBuilder) AddLink(action LinkAction)       { g.links = append(g.links, action) }

func (g *QobsBuilder) BuildFile() string { return "qflags_build_state.json" }

func (g *QobsBuilder) Generate() string {
	return "" // no build file needed
}

// Invoke performs the actual build
func (g *QobsBuilder) Invoke(buildDir string) error {
	g.stateFile = filepath.Join(buildDir, g.BuildFile())
	if err := g.loadBuildState(); err != nil {
		msg.Warn("failed to load build state: %v", err)
	}

	compileJobs, rebuilt, err := g.planCompiles()
	if err != nil {
		return fmt.Errorf("build planning failed: %w", err)
	}

	if err := runCompileJobs(compileJobs, g.jobs); err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	linkJobs, err := g.planLinks(buildDir, rebuilt)
	if err != nil {
		return fmt.Errorf("build planning failed: %w", err)
	}

	if len(compileJobs) == 0 && len(linkJobs) == 0 {
		msg.Info("no work to do")
		return nil
	}

	for _, job := range linkJobs {
		if err := runLinkJob(job); err != nil {
			return fmt.Errorf("linking failed: %w", err)
		}
	}

	if err := g.updateBuildState(); err != nil {
		msg.Warn("failed to update build state: %v", err)
	} else if err := g.saveBuildState(); err != nil {
		msg.Warn("failed to save build state: %v", err)
	}

	return nil
}

// planCompiles collects the stale sources of every compile action. Every
// source of an action is stale when the action's args differ from the last
// build.
func (g *QobsBuilder) planCompiles() ([]compileJob, map[string]bool, error) {
	var jobs []compileJob
	rebuilt := make(map[string]bool)

	for _, action := range g.compiles {
		pruned, err := pruneObjects(action)
		if err != nil {
			return nil, nil, err
		}
		if pruned {
			rebuilt[action.Name] = true
		}

		argsChanged := true
		if state := g.buildState[action.Name]; state != nil {
			argsChanged = !slices.Equal(state.Args, action.Args)
		}
		if argsChanged {
			msg.Verbose("%s: flags changed, recompiling all of its sources", action.Name)
		}

		for _, src := range action.Sources {
			obj := action.ObjectPath(src)
			stale, err := isStale(src, obj)
			if err != nil {
				return nil, nil, fmt.Errorf("could not check status of %s: %w", src, err)
			}
			if !stale && !argsChanged {
				continue
			}
			rebuilt[action.Name] = true
			jobs = append(jobs, compileJob{
				action: action.Name,
				src:    src,
				obj:    obj,
				cflags: action.Args,
				msvc:   action.MSVC,
				cc:     action.Compiler(src),
			})
		}
	}

	return jobs, rebuilt, nil
}

// linkObjects gathers the objects each link input left on disk
func linkObjects(link LinkAction) ([]string, error) {
	var objs []string
	for _, input := range link.Inputs {
		found, err := ObjectFiles(input.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects of %s: %w", input.Action, err)
		}
		objs = append(objs, found...)
	}
	return objs, nil
}

// planLinks decides which links have to run again
func (g *QobsBuilder) planLinks(buildDir string, rebuilt map[string]bool) ([]linkJob, error) {
	var jobs []linkJob

	for _, link := range g.links {
		out := filepath.Join(buildDir, link.Name)
		_, statErr := os.Stat(out)
		needsRelink := errors.Is(statErr, fs.ErrNotExist)

		for _, input := range link.Inputs {
			if rebuilt[input.Action] {
				needsRelink = true
			}
		}

		objs, err := linkObjects(link)
		if err != nil {
			return nil, err
		}

		state := g.buildState[link.Name]
		if state == nil || !slices.Equal(state.Args, link.Ldflags) || !slices.Equal(state.Sources, objs) {
			needsRelink = true
		}

		if !needsRelink {
			continue
		}

		tool := link.Linker
		if link.IsLib {
			tool = link.Archiver
		}
		jobs = append(jobs, linkJob{
			objs:    objs,
			out:     out,
			ldflags: link.Ldflags,
			isLib:   link.IsLib,
			msvc:    link.MSVC,
			tool:    tool,
		})
	}

	return jobs, nil
}

// pruneObjects removes objects of sources that left the action, e.g. a file
// that moved to another bucket, so the link doesn't pick them up twice. It
// reports whether anything was removed.
func pruneObjects(action CompileAction) (bool, error) {
	expected := make(map[string]bool, len(action.Sources))
	for _, src := range action.Sources {
		expected[action.ObjectPath(src)] = true
	}

	objs, err := ObjectFiles(action.ObjectDir)
	if err != nil {
		return false, err
	}
	pruned := false
	for _, obj := range objs {
		if expected[obj] {
			continue
		}
		msg.Verbose("removing stale object %s", obj)
		if err := os.Remove(obj); err != nil {
			return pruned, fmt.Errorf("failed to remove stale object: %w", err)
		}
		pruned = true
	}
	return pruned, nil
}

// isStale reports whether obj is missing or older than src
func isStale(src, obj string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return true, err
	}
	objInfo, err := os.Stat(obj)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	} else if err != nil {
		return true, err
	}
	return objInfo.ModTime().Before(srcInfo.ModTime()), nil
}

// runCompileJobs runs compilation jobs in parallel
func runCompileJobs(jobs []compileJob, limit int) error {
	if len(jobs) == 0 {
		return nil
	}

	var pb *msg.ProgressBar
	if !msg.IsVerbose() {
		pb = msg.NewProgressBar(int64(len(jobs)), 0, "CC", os.Stdout)
	}

	eg, _ := errgroup.WithContext(context.Background())
	eg.SetLimit(limit)

	for _, job := range jobs {
		eg.Go(func() error {
			if err := runCompileJob(job); err != nil {
				msg.Error("%v", err)
				return err
			}
			if pb != nil {
				pb.Add(1)
			}
			return nil
		})
	}

	err := eg.Wait()
	if pb != nil {
		pb.Finish()
	}
	return err
}

// compileArgs builds the command line of a compile job
func compileArgs(job compileJob) []string {
	args := make([]string, 0, len(job.cflags)+5)
	if job.msvc {
		args = append(args, "/nologo")
		args = append(args, job.cflags...)
		return append(args, "/c", job.src, "/Fo"+job.obj)
	}
	args = append(args, job.cflags...)
	return append(args, "-c", job.src, "-o", job.obj)
}

// runCompileJob runs a single compilation job
func runCompileJob(job compileJob) error {
	if err := os.MkdirAll(filepath.Dir(job.obj), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	cmd := exec.Command(job.cc, compileArgs(job)...)
	cmd.Stdout = &msg.IndentWriter{Indent: "  ", W: os.Stdout}
	cmd.Stderr = &msg.IndentWriter{Indent: "  ", W: os.Stderr}

	msg.Verbose("CC [%s] %s", job.action, job.src)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", job.src, err)
	}
	return nil
}

// linkArgs builds the command line of a link job
func linkArgs(job linkJob) []string {
	var args []string
	switch {
	case job.isLib && job.msvc:
		args = append(args, "/nologo", "/OUT:"+job.out)
		args = append(args, job.objs...)
	case job.isLib:
		args = append(args, "rcs", job.out)
		args = append(args, job.objs...)
	case job.msvc:
		args = append(args, "/nologo", "/OUT:"+job.out)
		args = append(args, job.objs...)
		args = append(args, job.ldflags...)
	default:
		args = append(args, "-o", job.out)
		args = append(args, job.objs...)
		args = append(args, job.ldflags...)
	}
	return args
}

// runLinkJob runs a single linking job
func runLinkJob(job linkJob) error {
	if err := os.MkdirAll(filepath.Dir(job.out), 0755); err != nil {
		return err
	}

	cmd := exec.Command(job.tool, linkArgs(job)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if job.isLib {
		fmt.Printf("AR %s\n", job.out)
	} else {
		fmt.Printf("LINK %s\n", job.out)
	}
	return cmd.Run()
}

// loadBuildState loads the previous build state from disk
func (g *QobsBuilder) loadBuildState() error {
	f, err := os.Open(g.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no previous state, that's fine
		}
		return err
	}
	defer f.Close()
	return json.NewDecoder(bufio.NewReader(f)).Decode(&g.buildState)
}

// saveBuildState saves the current build state to disk
func (g *QobsBuilder) saveBuildState() error {
	data, err := json.MarshalIndent(g.buildState, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.stateFile, data, 0644)
}

// updateBuildState records the args and inputs of every action after a
// successful build
func (g *QobsBuilder) updateBuildState() error {
	for _, action := range g.compiles {
		g.buildState[action.Name] = &BuildState{
			Args:    slices.Clone(action.Args),
			Sources: slices.Clone(action.Sources),
		}
	}
	for _, link := range g.links {
		objs, err := linkObjects(link)
		if err != nil {
			return err
		}
		g.buildState[link.Name] = &BuildState{
			Args:    slices.Clone(link.Ldflags),
			Sources: objs,
		}
	}
	return nil
}
