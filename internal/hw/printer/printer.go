// Package printer submits composed pictures to CUPS through lp.
package printer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cjeanneret/pimaton/internal/debug"
)

// Config describes the print destination.
type Config struct {
	Printer string   // CUPS destination; empty = default printer
	Copies  int
	Options []string // lp -o values, e.g. "media=Postcard"
	Command string   // defaults to lp
}

// Error is returned when a file cannot be submitted.
type Error struct {
	Printer string
	Path    string
	Output  string
	Err     error
}

func (e *Error) Error() string {
	dest := e.Printer
	if dest == "" {
		dest = "default printer"
	}
	msg := fmt.Sprintf("print %s on %s: %v", e.Path, dest, e.Err)
	if e.Output != "" {
		msg += " (" + e.Output + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Dispatcher sends files to the printing subsystem.
type Dispatcher struct {
	cfg Config
	run runFunc
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Command == "" {
		cfg.Command = "lp"
	}
	if cfg.Copies <= 0 {
		cfg.Copies = 1
	}
	return &Dispatcher{
		cfg: cfg,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Args returns the lp arguments for path.
func (d *Dispatcher) Args(path string) []string {
	var args []string
	if d.cfg.Printer != "" {
		args = append(args, "-d", d.cfg.Printer)
	}
	args = append(args, "-n", strconv.Itoa(d.cfg.Copies))
	for _, o := range d.cfg.Options {
		args = append(args, "-o", o)
	}
	return append(args, path)
}

// Print submits path and returns once the spooler has accepted it.
func (d *Dispatcher) Print(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return &Error{Printer: d.cfg.Printer, Path: path, Err: err}
	}

	args := d.Args(path)
	debug.Command(d.cfg.Command, args)
	out, err := d.run(ctx, d.cfg.Command, args...)
	if err != nil {
		return &Error{
			Printer: d.cfg.Printer,
			Path:    path,
			Output:  strings.TrimSpace(string(out)),
			Err:     err,
		}
	}
	debug.Info("Print job submitted: %s", strings.TrimSpace(string(out)))
	return nil
}
