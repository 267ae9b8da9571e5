package gen

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// ObjectPatterns select the files of an object directory that go to the linker
var ObjectPatterns = []string{"**/*.o", "**/*.obj"}

// IsObjectFile reports whether a path relative to an object directory is an
// object file
func IsObjectFile(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pat := range ObjectPatterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// ObjectFiles lists the object files under dir, sorted
func ObjectFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	fsys := os.DirFS(dir)
	var objs []string
	for _, pat := range ObjectPatterns {
		matches, err := doublestar.Glob(fsys, pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			objs = append(objs, filepath.Join(dir, filepath.FromSlash(match)))
		}
	}

	slices.Sort(objs)
	return slices.Compact(objs), nil
}
