package ui

import (
	"fmt"
	"io"
)

// Progress prints a "[n/total]" counter as trees are processed. Tree
// processing is sequential, so no synchronization is needed.
type Progress struct {
	out   io.Writer
	total int
	done  int
}

// NewProgress creates a progress counter over total trees.
func NewProgress(out io.Writer, total int) *Progress {
	return &Progress{out: out, total: total}
}

// Step advances the counter and prints it with the given label.
func (p *Progress) Step(label string) {
	p.done++
	_, _ = fmt.Fprintf(p.out, "%s %s\n",
		render(markerStyle, fmt.Sprintf("[%d/%d]", p.done, p.total)), label)
}
