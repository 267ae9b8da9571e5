package builder

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var macroNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Baseline is the component-wide compiler configuration every bucket's
// invocation is cloned from
type Baseline struct {
	Name               string
	Toolchain          Toolchain
	TargetPlatform     Platform
	IncludePaths       []string
	SystemIncludePaths []string
	// Macros maps a macro name to its value, nil for a macro without a value
	Macros map[string]*string
	Args   []string

	BuildDir  string
	ObjectDir string
}

// Validate rejects a baseline that composition can't handle
func (b Baseline) Validate() error {
	if b.Name == "" {
		return errors.New("baseline: component name is required")
	}
	if b.Toolchain.CC == "" && b.Toolchain.CXX == "" {
		return fmt.Errorf("baseline %q: %w", b.Name, errNoCompiler)
	}
	if b.BuildDir == "" {
		return fmt.Errorf("baseline %q: build directory is required", b.Name)
	}
	for name := range b.Macros {
		if !macroNameRegex.MatchString(name) {
			return fmt.Errorf("baseline %q: invalid macro name %q", b.Name, name)
		}
	}
	if b.ObjectDir != "" {
		rel, err := filepath.Rel(b.tempDir(), b.ObjectDir)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("baseline %q: object directory %s overlaps bucket outputs in %s", b.Name, b.ObjectDir, b.tempDir())
		}
	}
	return nil
}

// tempDir holds the per-bucket object directories
func (b Baseline) tempDir() string {
	return filepath.Join(b.BuildDir, "tmp")
}

// macrosFromDefines converts manifest defines, where an empty value means a
// macro without a value
func macrosFromDefines(defines map[string]string) map[string]*string {
	if defines == nil {
		return nil
	}
	macros := make(map[string]*string, len(defines))
	for name, value := range defines {
		if value == "" {
			macros[name] = nil
			continue
		}
		macros[name] = &value
	}
	return macros
}
