package input

import (
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/cjeanneret/pimaton/internal/debug"
)

const ctrlC = 0x03

// Keyboard triggers on a key press. On a terminal stdin is switched to raw
// mode so a single key is enough; otherwise a newline is required.
type Keyboard struct {
	events  chan error // nil = trigger
	once    sync.Once
	restore func() error
	raw     bool
}

// NewKeyboard starts reading r in the background.
func NewKeyboard(r io.Reader) *Keyboard {
	k := &Keyboard{events: make(chan error, 1)}
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		if state, err := term.MakeRaw(fd); err != nil {
			debug.Warn("Cannot switch terminal to raw mode, press Enter to trigger: %v", err)
		} else {
			k.raw = true
			k.restore = func() error { return term.Restore(fd, state) }
		}
	}
	go k.read(r)
	return k
}

func (k *Keyboard) read(r io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			switch {
			case k.raw && buf[0] == ctrlC:
				k.events <- ErrInterrupted
				return
			case k.raw || buf[0] == '\n':
				debug.Trace("Key pressed: %q", buf[0])
				select {
				case k.events <- nil:
				default: // presses during a session are dropped
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				debug.Warn("Keyboard read failed: %v", err)
			}
			k.events <- ErrClosed
			return
		}
	}
}

// Triggered reports a pending key press.
func (k *Keyboard) Triggered() (bool, error) {
	select {
	case err := <-k.events:
		if err != nil {
			// Keep reporting the terminal condition on later polls.
			k.events <- err
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// Close restores the terminal mode.
func (k *Keyboard) Close() error {
	var err error
	k.once.Do(func() {
		if k.restore != nil {
			err = k.restore()
		}
	})
	return err
}
