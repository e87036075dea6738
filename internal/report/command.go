package report

import (
	"io"
	"sync/atomic"

	"codeberg.org/mutker/fanctl/internal/control"
)

// Command is a single byte request from the host.
type Command byte

const (
	CommandNone       Command = 0
	CommandReport     Command = 't'
	CommandBootloader Command = 'u'
)

// ParseCommand maps a received byte to a command. Unknown bytes are
// CommandNone and are ignored.
func ParseCommand(b byte) Command {
	switch Command(b) {
	case CommandReport, CommandBootloader:
		return Command(b)
	default:
		return CommandNone
	}
}

// Dispatcher collects commands from received chunks. Report requests
// coalesce into one pending report; a periodic timer can also request one.
type Dispatcher struct {
	pending atomic.Bool
	// Bootloader is called when the host asks for a reset into the USB
	// bootloader. On target it does not return.
	Bootloader func()
}

// Feed scans buf for commands and reports whether a bootloader reset was
// requested. Bytes after a bootloader request are dropped.
func (d *Dispatcher) Feed(buf []byte) bool {
	for _, b := range buf {
		switch ParseCommand(b) {
		case CommandReport:
			d.pending.Store(true)
		case CommandBootloader:
			if d.Bootloader != nil {
				d.Bootloader()
			}
			return true
		}
	}

	return false
}

// Request marks a report pending.
func (d *Dispatcher) Request() {
	d.pending.Store(true)
}

// Pending reports whether a report is waiting to be sent.
func (d *Dispatcher) Pending() bool {
	return d.pending.Load()
}

// Flush writes s to w if a report is pending. The pending flag is cleared
// even when the write fails. It reports whether a line was attempted.
func (d *Dispatcher) Flush(w io.Writer, s control.Status) bool {
	if !d.pending.Swap(false) {
		return false
	}

	_ = WriteStatus(w, s)
	return true
}
