//go:build rp2040

// Package rp2040 provides the hal peripherals of a Pimoroni Tiny 2040: a
// thermistor on ADC0 streamed into memory by DMA, the fan PWM on GPIO4 and
// the RGB LED.
package rp2040

import (
	"runtime/volatile"
	"unsafe"
)

const (
	resetsBase = 0x4000c000
	adcBase    = 0x4004c000
	dmaBase    = 0x50000000

	// Atomic clear alias of every peripheral register block.
	aliasClear = 0x3000

	resetsReset     = 0x0
	resetsResetDone = 0x8
	resetADC        = 1 << 0
	resetDMA        = 1 << 2

	adcCS     = 0x0
	adcResult = 0x4
	adcFCS    = 0x8
	adcFIFO   = 0xc
	adcDIV    = 0x10

	adcCSEn            = 1 << 0
	adcCSStartOnce     = 1 << 2
	adcCSStartMany     = 1 << 3
	adcCSReady         = 1 << 8
	adcCSErr           = 1 << 9
	adcCSAinselPos     = 12
	adcCSAinselMsk     = 0x7 << adcCSAinselPos
	adcFCSEn           = 1 << 0
	adcFCSDreqEn       = 1 << 3
	adcFCSEmpty        = 1 << 8
	adcFCSThreshPos    = 24
	adcDIVIntPos       = 8
	adcDREQ            = 36
	adcThermistorInput = 0

	// 48 MHz / (46874 + 1) is about 1024 samples per second.
	adcClockDivider = 46874

	dmaChannelStride = 0x40
	dmaReadAddr      = 0x0
	dmaWriteAddr     = 0x4
	dmaTransCount    = 0x8
	dmaCtrlTrig      = 0xc
	dmaINTE0         = 0x404
	dmaINTS0         = 0x40c
	dmaChanAbort     = 0x444

	dmaCtrlEn         = 1 << 0
	dmaDataSizePos    = 2
	dmaDataSizeHalf   = 1
	dmaCtrlIncrWrite  = 1 << 5
	dmaCtrlChainToPos = 11
	dmaCtrlTreqSelPos = 15
	dmaCtrlBusy       = 1 << 24
)

func reg(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// unreset takes the blocks in mask out of reset and waits until they are
// ready.
func unreset(mask uint32) {
	reg(resetsBase + aliasClear + resetsReset).Set(mask)
	for reg(resetsBase+resetsResetDone).Get()&mask != mask {
	}
}
