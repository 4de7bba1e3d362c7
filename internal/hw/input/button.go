package input

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/pimaton/internal/debug"
	"github.com/cjeanneret/pimaton/internal/hw/gpio"
)

// Button is a push button wired between a GPIO pin and ground. The pin is
// pulled up, so a press reads Low. One press triggers once.
type Button struct {
	mu       sync.Mutex
	driver   gpio.Driver
	pin      int
	debounce time.Duration
	last     gpio.Level
	lastHit  time.Time
	now      func() time.Time
}

func NewButton(driver gpio.Driver, pin int, debounce time.Duration) (*Button, error) {
	if driver == nil {
		return nil, fmt.Errorf("button on pin %d: no GPIO driver", pin)
	}
	if err := driver.SetupPin(pin, gpio.InputPullUp); err != nil {
		return nil, fmt.Errorf("button on pin %d: %w", pin, err)
	}
	debug.Verbose("Button ready on GPIO %d (debounce %v)", pin, debounce)
	return &Button{
		driver:   driver,
		pin:      pin,
		debounce: debounce,
		last:     gpio.High,
		now:      time.Now,
	}, nil
}

// SetClock replaces the clock used for debouncing.
func (b *Button) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// Triggered reports a High to Low transition that is at least debounce
// after the previous one.
func (b *Button) Triggered() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	level, err := b.driver.ReadPin(b.pin)
	if err != nil {
		return false, fmt.Errorf("button on pin %d: %w", b.pin, err)
	}
	pressed := b.last == gpio.High && level == gpio.Low
	b.last = level
	if !pressed {
		return false, nil
	}

	now := b.now()
	if !b.lastHit.IsZero() && now.Sub(b.lastHit) < b.debounce {
		debug.Trace("Button bounce ignored on GPIO %d", b.pin)
		return false, nil
	}
	b.lastHit = now
	debug.Live("Button pressed on GPIO %d", b.pin)
	return true, nil
}
