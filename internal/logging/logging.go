// Package logging provides the two layers of output mops uses: a
// structured hclog.Logger for diagnostics (network calls, retries,
// cache hits) and a colored, concurrency-safe status printer for the
// lines a user watches scroll by during resolve/fetch.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
)

// IsTTY reports whether stdout is attached to a terminal.
var IsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

var (
	successPrefix = color.New(color.Bold, color.FgGreen, color.ReverseVideo).Sprint(" OK ")
	warnPrefix    = color.New(color.Bold, color.FgYellow, color.ReverseVideo).Sprint(" WARN ")
	errorPrefix   = color.New(color.Bold, color.FgRed, color.ReverseVideo).Sprint(" ERROR ")
)

// NewHCLog builds the structured logger passed to httpclient.Client and
// every component that needs leveled diagnostic output.
func NewHCLog(name string, level hclog.Level) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  level,
		Output: os.Stderr,
	})
}

// Status is a concurrency-safe status-line printer: every write takes a
// single mutex, so lines from concurrent goroutines never interleave.
type Status struct {
	out   io.Writer
	mutex sync.Mutex
}

// New returns a Status writing to stdout.
func New() *Status {
	return &Status{out: os.Stdout}
}

// Printf writes a plain status line.
func (s *Status) Printf(format string, args ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

// Success writes a green, prefixed success line.
func (s *Status) Success(format string, args ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fmt.Fprintf(s.out, "%s%s\n", successPrefix, color.GreenString(" "+format, args...))
}

// Warn writes a yellow, prefixed warning line.
func (s *Status) Warn(format string, args ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fmt.Fprintf(s.out, "%s%s\n", warnPrefix, color.YellowString(" "+format, args...))
}

// Error writes a red, prefixed error line.
func (s *Status) Error(format string, args ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fmt.Fprintf(s.out, "%s%s\n", errorPrefix, color.RedString(" "+format, args...))
}
