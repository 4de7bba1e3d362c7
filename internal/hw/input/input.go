// Package input provides the trigger sources that start a photo session.
package input

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cjeanneret/pimaton/internal/config"
	"github.com/cjeanneret/pimaton/internal/hw/gpio"
)

// Source reports whether a session should start. Triggered never blocks;
// the controller polls it.
type Source interface {
	Triggered() (bool, error)
}

var (
	// ErrInterrupted is returned by Keyboard when Ctrl-C is read in raw mode.
	ErrInterrupted = errors.New("input interrupted")
	// ErrClosed is returned once the keyboard stream has ended.
	ErrClosed = errors.New("input closed")
)

// New builds the source selected by cfg.Type.
func New(cfg config.InputConfig, driver gpio.Driver, stdin io.Reader) (Source, error) {
	switch cfg.Type {
	case config.InputKeyboard:
		return NewKeyboard(stdin), nil
	case config.InputGPIO:
		return NewButton(driver, cfg.Pin, time.Duration(cfg.DebounceMs)*time.Millisecond)
	case config.InputWeb:
		return NewWeb(), nil
	case config.InputAlways:
		return Always{}, nil
	default:
		return nil, fmt.Errorf("not recognized input type %q", cfg.Type)
	}
}

// Close releases the resources of src when it holds any.
func Close(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Always triggers on every poll. Used for unattended runs.
type Always struct{}

func (Always) Triggered() (bool, error) { return true, nil }
