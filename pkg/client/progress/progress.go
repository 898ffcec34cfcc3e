// Package progress renders CLI deploy progress: colored "[k/N]" step
// headers, a progress bar, and success/error tags.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
)

// Reporter renders step headers and result tags for a sequence of N
// deploy operations. Safe for concurrent use across worker goroutines.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	total int
	done  int
	bar   *pb.ProgressBar
}

// New builds a Reporter for a deploy of `total` modules, writing to w.
func New(w io.Writer, total int) *Reporter {
	r := &Reporter{out: w, total: total}
	if total > 0 {
		r.bar = pb.New(total).SetWriter(w)
		r.bar.Start()
	}
	return r
}

// Step reports that module `name` is about to be deployed, printing a
// "[k/N] name" header.
func (r *Reporter) Step(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	fmt.Fprintf(r.out, "[%d/%d] %s\n", r.done, r.total, name)
	if r.bar != nil {
		r.bar.Increment()
	}
}

// Success prints a green success tag for module name.
func (r *Reporter) Success(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	color.New(color.FgGreen).Fprintf(r.out, "  ok: %s\n", name)
}

// Error prints a red "Error:" tag for module name.
func (r *Reporter) Error(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	color.New(color.FgRed).Fprintf(r.out, "  Error: %s: %v\n", name, err)
}

// Finish stops the progress bar, if one was started.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Finish()
	}
}

// Default returns a Reporter writing to stdout.
func Default(total int) *Reporter { return New(os.Stdout, total) }
