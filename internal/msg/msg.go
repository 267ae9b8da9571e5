package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var verbose bool

// SetVerbose enables Verbose output
func SetVerbose(v bool) { verbose = v }

// IsVerbose reports whether Verbose output is enabled
func IsVerbose() bool { return verbose }

func Error(format string, a ...any) {
	fmt.Print(color.HiRedString("error"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

func Warn(format string, a ...any) {
	fmt.Print(color.YellowString("warn"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

func Fatal(format string, a ...any) {
	fmt.Print(color.RedString("fatal"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
	os.Exit(1)
}

func Info(format string, a ...any) {
	fmt.Print(color.HiGreenString("info"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

// Verbose prints only when verbose output is enabled
func Verbose(format string, a ...any) {
	if !verbose {
		return
	}
	fmt.Print(color.HiBlackString("debug"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didIndent {
			w.W.Write([]byte(w.Indent))
			w.didIndent = true
		}
		w.W.Write([]byte{c}) // FIXME-perf: buffer this
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	return len(p), nil
}
