package hal

import (
	"sync/atomic"

	"codeberg.org/mutker/fanctl/internal/errors"
)

// Claim is a take-once ownership flag. The zero value is free.
type Claim struct {
	taken atomic.Bool
}

// Take marks the claim held, or fails with ErrResourceBusy if it already is.
func (c *Claim) Take(name string) error {
	if !c.taken.CompareAndSwap(false, true) {
		return errors.New().WithData(errors.ErrResourceBusy, name)
	}

	return nil
}

// Release frees the claim.
func (c *Claim) Release() {
	c.taken.Store(false)
}

// Held reports whether the claim is taken.
func (c *Claim) Held() bool {
	return c.taken.Load()
}
