package gen

import (
	"path/filepath"
	"strings"
)

var cxxExtensions = map[string]bool{
	".cc": true, ".cpp": true, ".cxx": true, ".c++": true, ".cp": true, ".C": true, ".ixx": true, ".cppm": true,
}

// IsCxx reports whether src should be compiled with the C++ compiler
func IsCxx(src string) bool {
	return cxxExtensions[filepath.Ext(src)]
}

func write(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
}

func writeln(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
	sb.WriteByte('\n')
}
