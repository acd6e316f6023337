// Package ui writes the operator facing progress lines of a setup run.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	markerInfo  = "[INFO]"
	markerOK    = "[ OK ]"
	markerWarn  = "[WARN]"
	markerError = "[ERROR]"
)

// Printer writes marked lines. Warnings and errors are counted.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Quiet bool

	mu       sync.Mutex
	warnings int
	errors   int
	colorize bool
}

// New returns a printer writing to stdout and stderr. Markers are colored
// only when stdout is a terminal.
func New() *Printer {
	return &Printer{
		Out:      os.Stdout,
		Err:      os.Stderr,
		colorize: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}
}

// NewBuffered returns an uncolored printer writing everything to w.
func NewBuffered(w io.Writer) *Printer {
	return &Printer{Out: w, Err: w}
}

func (p *Printer) Info(format string, args ...interface{}) {
	if p.Quiet {
		return
	}
	p.line(p.Out, color.FgCyan, markerInfo, format, args...)
}

func (p *Printer) Success(format string, args ...interface{}) {
	if p.Quiet {
		return
	}
	p.line(p.Out, color.FgGreen, markerOK, format, args...)
}

func (p *Printer) Warn(format string, args ...interface{}) {
	p.mu.Lock()
	p.warnings++
	p.mu.Unlock()
	p.line(p.Err, color.FgYellow, markerWarn, format, args...)
}

func (p *Printer) Error(format string, args ...interface{}) {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
	p.line(p.Err, color.FgRed, markerError, format, args...)
}

// Println writes an unmarked line to the regular output.
func (p *Printer) Println(format string, args ...interface{}) {
	if p.Quiet {
		return
	}
	fmt.Fprintf(p.Out, format+"\n", args...)
}

func (p *Printer) Warnings() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.warnings
}

func (p *Printer) Errors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors
}

func (p *Printer) line(w io.Writer, attr color.Attribute, marker, format string, args ...interface{}) {
	if w == nil {
		return
	}
	if p.colorize {
		c := color.New(attr, color.Bold)
		c.EnableColor()
		marker = c.Sprint(marker)
	}
	fmt.Fprintf(w, "%s %s\n", marker, fmt.Sprintf(format, args...))
}
