package commands

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/moolen/kubetrace/internal/cgroups"
	"golang.org/x/term"
)

// progressPrinter rewrites a single status line with the latest estimate of
// each sub-trace. It stays silent when the output is not a terminal.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	printed bool
}

func newProgressPrinter(f *os.File) *progressPrinter {
	return &progressPrinter{out: f, enabled: term.IsTerminal(int(f.Fd()))}
}

// Report prints e. It is safe for concurrent use by the sub-trace passes.
func (p *progressPrinter) Report(e cgroups.Estimate) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pct := 0.0
	if e.Total > 0 {
		pct = 100 * float64(e.Completed) / float64(e.Total)
	}
	fmt.Fprintf(p.out, "\r\033[K%s: %.1f%% (%d/%d events). %s", e.SubTrace, pct, e.Completed, e.Total, e.Message())
	p.printed = true
}

// Done ends the status line
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Fprintln(p.out)
		p.printed = false
	}
}
