package sim

import (
	"sync"
	"time"

	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// DMAIRQ0 is the RP2040 DMA_IRQ_0 line.
const DMAIRQ0 hal.IRQ = 11

type sampler interface {
	Next() uint16
	Running() bool
}

// DMAChannel copies conversions into memory on its own goroutine. Each
// completed transfer raises the channel IRQ; the next transfer waits for a
// Start.
type DMAChannel struct {
	irq      hal.IRQ
	ic       *Interrupts
	interval time.Duration

	arm  chan *hal.Transfer
	stop chan struct{}
	done chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	mu         sync.Mutex
	current    *hal.Transfer
	irqEnabled bool
	pending    bool
	completed  uint64
}

var _ hal.DMAChannel = (*DMAChannel)(nil)

func NewDMAChannel(irq hal.IRQ, ic *Interrupts, interval time.Duration) *DMAChannel {
	return &DMAChannel{
		irq:      irq,
		ic:       ic,
		interval: interval,
		arm:      make(chan *hal.Transfer, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *DMAChannel) IRQ() hal.IRQ { return c.irq }

func (c *DMAChannel) Start(t *hal.Transfer) error {
	errFactory := errors.New()

	if t == nil || len(t.Dest) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "empty transfer")
	}
	if _, ok := t.Source.(sampler); !ok {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "transfer source is not a simulated peripheral")
	}

	c.startOnce.Do(func() { go c.run() })

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-triggering replaces a queued transfer, as writing CTRL_TRIG does.
	select {
	case <-c.arm:
	default:
	}
	c.arm <- t
	c.current = t

	return nil
}

func (c *DMAChannel) Acknowledge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = false
}

func (c *DMAChannel) EnableIRQ() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.irqEnabled = true
}

func (c *DMAChannel) DisableIRQ() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.irqEnabled = false
}

// Completed returns the number of finished transfers.
func (c *DMAChannel) Completed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.completed
}

// Close stops the channel. It is safe to call more than once.
func (c *DMAChannel) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.startOnce.Do(func() { close(c.done) })
	})
	<-c.done
}

func (c *DMAChannel) run() {
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		case t := <-c.arm:
			if !c.fill(t) {
				return
			}
			c.complete(t)
		}
	}
}

func (c *DMAChannel) fill(t *hal.Transfer) bool {
	src := t.Source.(sampler)

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-c.stop:
			return false
		case <-timer.C:
		}
		if src.Running() {
			break
		}
		timer.Reset(c.interval)
	}

	for i := range t.Dest {
		v := src.Next()
		if t.Lock != nil {
			t.Lock.Lock()
		}
		t.Dest[i] = v
		if t.Lock != nil {
			t.Lock.Unlock()
		}
	}

	return true
}

// complete signals the end of t. A transfer superseded by a later Start
// finishes silently.
func (c *DMAChannel) complete(t *hal.Transfer) {
	c.mu.Lock()
	if t != c.current {
		c.mu.Unlock()
		return
	}
	c.pending = true
	c.completed++
	raise := c.irqEnabled
	c.mu.Unlock()

	if raise {
		c.ic.Raise(c.irq)
	}
}

// Pending reports whether a completion has not been acknowledged.
func (c *DMAChannel) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending
}
