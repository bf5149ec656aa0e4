package testsession

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// CountdownState is the lifecycle of a Countdown.
type CountdownState int

const (
	CountdownNotStarted CountdownState = iota
	CountdownRunning
	CountdownExpired
	CountdownStopped
)

func (s CountdownState) String() string {
	switch s {
	case CountdownNotStarted:
		return "not-started"
	case CountdownRunning:
		return "running"
	case CountdownExpired:
		return "expired"
	case CountdownStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	ErrCountdownRunning = errors.New("countdown already running")
	ErrCountdownExpired = errors.New("countdown already expired")
)

// Countdown decrements a remaining-seconds counter once per tick and calls
// onExpire exactly once when it reaches zero.
type Countdown struct {
	clock    Clock
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	state     CountdownState
	remaining int
	stop      chan struct{}
}

// NewCountdown builds a countdown. onTick and onExpire run outside the countdown lock
// and may be nil.
func NewCountdown(clock Clock, onTick func(remaining int), onExpire func()) *Countdown {
	if clock == nil {
		clock = SystemClock
	}
	return &Countdown{clock: clock, onTick: onTick, onExpire: onExpire}
}

// Start runs the countdown from remaining seconds. A value <= 0 expires immediately
// and onExpire runs before Start returns. A stopped countdown may be started again.
func (c *Countdown) Start(remaining int) error {
	c.mu.Lock()
	switch c.state {
	case CountdownRunning:
		c.mu.Unlock()
		return ErrCountdownRunning
	case CountdownExpired:
		c.mu.Unlock()
		return ErrCountdownExpired
	}

	if remaining <= 0 {
		c.remaining = 0
		c.state = CountdownExpired
		c.mu.Unlock()
		c.expire()
		return nil
	}

	c.remaining = remaining
	c.state = CountdownRunning
	stop := make(chan struct{})
	c.stop = stop
	ticker := c.clock.NewTicker(time.Second)
	c.mu.Unlock()

	go c.run(ticker, stop)
	return nil
}

// Stop cancels the ticker. No decrement happens after Stop returns.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CountdownRunning {
		return
	}
	c.state = CountdownStopped
	close(c.stop)
}

// Remaining returns the seconds left, never negative.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) State() CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Countdown) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%s (%ds)", c.state, c.remaining)
}

func (c *Countdown) run(t Ticker, stop chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			remaining, expired, ok := c.tick(stop)
			if !ok {
				return
			}
			if c.onTick != nil {
				c.onTick(remaining)
			}
			if expired {
				c.expire()
				return
			}
		}
	}
}

func (c *Countdown) tick(stop chan struct{}) (remaining int, expired, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A tick racing with Stop, or belonging to an earlier run, is dropped.
	if c.state != CountdownRunning || c.stop != stop {
		return 0, false, false
	}
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.state = CountdownExpired
		return 0, true, true
	}
	return c.remaining, false, true
}

func (c *Countdown) expire() {
	if c.onExpire != nil {
		c.onExpire()
	}
}
