package srcflags

import (
	"fmt"
	"path/filepath"
)

// File is a source file identified by its canonical path
type File string

// Canonical returns the canonical form of a path, used for file identity
func Canonical(path string) File {
	return File(filepath.Clean(path))
}

func (f File) String() string { return string(f) }

// Predicate selects source files
type Predicate func(File) bool

// Pool holds the files not yet claimed by any bucket. It never grows.
type Pool struct {
	files   []File
	claimed map[File]bool
}

// NewPool creates a pool over the given universe. Paths are canonicalized and
// duplicates are dropped, keeping the first occurrence.
func NewPool(universe []File) *Pool {
	p := &Pool{claimed: make(map[File]bool, len(universe))}
	seen := make(map[File]struct{}, len(universe))
	for _, f := range universe {
		f = Canonical(string(f))
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		p.files = append(p.files, f)
	}
	return p
}

// Claim removes and returns every pooled file matching pred, in universe order
func (p *Pool) Claim(pred Predicate) []File {
	var out []File
	for _, f := range p.files {
		if p.claimed[f] || !pred(f) {
			continue
		}
		p.claimed[f] = true
		out = append(out, f)
	}
	return out
}

// ClaimFile removes exactly one file by identity
func (p *Pool) ClaimFile(file File) (File, error) {
	file = Canonical(string(file))
	if !p.Contains(file) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, file)
	}

	matched := p.Claim(func(f File) bool { return f == file })
	if len(matched) != 1 {
		return "", fmt.Errorf("%w: %s matched %d files", ErrAmbiguousSingleton, file, len(matched))
	}
	return matched[0], nil
}

// Contains reports whether file is still unclaimed
func (p *Pool) Contains(file File) bool {
	file = Canonical(string(file))
	for _, f := range p.files {
		if f == file {
			return !p.claimed[f]
		}
	}
	return false
}

// Remaining returns a snapshot of the unclaimed files
func (p *Pool) Remaining() []File {
	out := make([]File, 0, len(p.files))
	for _, f := range p.files {
		if !p.claimed[f] {
			out = append(out, f)
		}
	}
	return out
}

// Universe returns every file the pool was created with
func (p *Pool) Universe() []File {
	out := make([]File, len(p.files))
	copy(out, p.files)
	return out
}
