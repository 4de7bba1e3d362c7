// Package syncer copies the booth output to a remote destination by
// running an external file-sync command (rsync by default).
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cjeanneret/pimaton/internal/debug"
)

// Config describes the sync command line:
// <Command> <Options...> <Source> <Destination>.
type Config struct {
	Command     string
	Options     []string
	Source      string
	Destination string
}

// Error reports a failed sync. ExitCode is -1 when the command did not run.
type Error struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("sync %s: %v", e.Command, e.Err)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("sync %s: exit code %d", e.Command, e.ExitCode)
	}
	if e.Output != "" {
		msg += " (" + e.Output + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Syncer struct {
	cfg Config
	run runFunc
}

func New(cfg Config) *Syncer {
	if cfg.Command == "" {
		cfg.Command = "rsync"
	}
	return &Syncer{
		cfg: cfg,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Args returns the arguments passed to the sync command.
func (s *Syncer) Args() []string {
	args := append([]string{}, s.cfg.Options...)
	return append(args, s.cfg.Source, s.cfg.Destination)
}

// Sync runs the command and waits for it to finish.
func (s *Syncer) Sync(ctx context.Context) error {
	args := s.Args()
	debug.Command(s.cfg.Command, args)

	out, err := s.run(ctx, s.cfg.Command, args...)
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &Error{
			Command:  s.cfg.Command,
			ExitCode: code,
			Output:   strings.TrimSpace(string(out)),
			Err:      err,
		}
	}
	debug.Info("Synced %s to %s", s.cfg.Source, s.cfg.Destination)
	return nil
}
