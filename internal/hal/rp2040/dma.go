//go:build rp2040

package rp2040

import (
	"unsafe"

	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// DMAChannel is one hardware channel reporting completion on DMA_IRQ_0.
type DMAChannel struct {
	ch uint8
}

var _ hal.DMAChannel = (*DMAChannel)(nil)

func (c *DMAChannel) base() uintptr {
	return dmaBase + uintptr(c.ch)*dmaChannelStride
}

func (*DMAChannel) IRQ() hal.IRQ { return IRQDMA0 }

// Start programs and triggers a halfword copy from a fixed peripheral
// address into t.Dest, paced by the source's DREQ.
func (c *DMAChannel) Start(t *hal.Transfer) error {
	errFactory := errors.New()

	if t == nil || len(t.Dest) == 0 || t.Source == nil {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "empty transfer")
	}

	base := c.base()
	if reg(base+dmaCtrlTrig).Get()&dmaCtrlBusy != 0 {
		return errFactory.WithData(errors.ErrResourceBusy, c.ch)
	}

	reg(base + dmaReadAddr).Set(uint32(t.Source.Address()))
	reg(base + dmaWriteAddr).Set(uint32(uintptr(unsafe.Pointer(&t.Dest[0]))))
	reg(base + dmaTransCount).Set(uint32(len(t.Dest)))
	// Chaining to itself disables chaining.
	reg(base + dmaCtrlTrig).Set(dmaCtrlEn |
		dmaDataSizeHalf<<dmaDataSizePos |
		dmaCtrlIncrWrite |
		uint32(c.ch)<<dmaCtrlChainToPos |
		uint32(t.Source.DREQ())<<dmaCtrlTreqSelPos)

	return nil
}

func (c *DMAChannel) Acknowledge() {
	reg(dmaBase + dmaINTS0).Set(1 << c.ch)
}

func (c *DMAChannel) EnableIRQ() {
	reg(dmaBase + dmaINTE0).SetBits(1 << c.ch)
}

// DisableIRQ also aborts a transfer in flight, so the channel no longer
// writes to the buffer.
func (c *DMAChannel) DisableIRQ() {
	reg(dmaBase + dmaINTE0).ClearBits(1 << c.ch)
	reg(dmaBase + dmaChanAbort).Set(1 << c.ch)
	for reg(dmaBase+dmaChanAbort).Get()&(1<<c.ch) != 0 {
	}
	c.Acknowledge()
}
