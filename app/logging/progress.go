package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

const barWidth = 24

// Progress renders "done/total [####....] ok=N fail=M" on a single line.
// Rendering is best effort and never blocks the caller for longer than a write.
type Progress struct {
	out   io.Writer
	label string
	mu    sync.Mutex
}

func NewProgress(out io.Writer, label string) *Progress {
	return &Progress{out: out, label: label}
}

func (p *Progress) Update(done, total, ok, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\r%s %s ok=%s fail=%s",
		p.label,
		Bar(done, total),
		color.GreenString("%d", ok),
		color.RedString("%d", failed),
	)
	if done >= total {
		fmt.Fprintln(p.out)
	}
}

// Bar returns "done/total [###.....]" with a fixed width.
func Bar(done, total int) string {
	if total <= 0 {
		return "0/0 [" + strings.Repeat(".", barWidth) + "]"
	}
	if done > total {
		done = total
	}
	filled := done * barWidth / total
	return fmt.Sprintf("%d/%d [%s%s]", done, total,
		strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled))
}
