package msg

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar counts finished jobs. It is safe for concurrent use.
type ProgressBar struct {
	Total   int64
	Current int64
	Indent  int
	Label   string
	Start   time.Time
	W       io.Writer

	mu         sync.Mutex
	lastPrint  time.Time
	throbIndex int
}

var throbbers = []rune{'|', '/', '-', '\\'}

func NewProgressBar(total int64, indent int, label string, w io.Writer) *ProgressBar {
	return &ProgressBar{
		Total:     total,
		Indent:    indent,
		Label:     label,
		Start:     time.Now(),
		W:         w,
		lastPrint: time.Now(),
	}
}

// Add marks n more jobs as done
func (pb *ProgressBar) Add(n int64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.Current += n
	if time.Since(pb.lastPrint) > 40*time.Millisecond || pb.Current >= pb.Total {
		pb.print(false)
		pb.lastPrint = time.Now()
	}
}

func (pb *ProgressBar) print(finish bool) {
	width := 40
	percent := float64(pb.Current) / float64(max(pb.Total, 1))
	if finish {
		percent = 1
	}

	filled := min(int(percent*float64(width)), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("-", width-filled)

	throb := throbbers[pb.throbIndex%len(throbbers)]
	pb.throbIndex++
	if finish {
		throb = ' '
	}

	fmt.Fprintf(pb.W, "\r%s%s %d/%d [%s] %c",
		strings.Repeat(" ", pb.Indent),
		pb.Label,
		pb.Current,
		pb.Total,
		bar,
		throb,
	)
}

func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.print(true)
	fmt.Fprintf(pb.W, " %s\n", time.Since(pb.Start).Round(time.Millisecond))
}
