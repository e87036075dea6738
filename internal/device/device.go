// Package device talks to the fan controller over its USB serial link.
package device

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/logger"
	"codeberg.org/mutker/fanctl/internal/report"
)

const (
	DefaultBaudRate   = 115200
	DefaultBufferSize = 100

	// USB identity of the controller.
	VendorID  = "16C0"
	ProductID = "27DD"

	// AutoPort selects the first attached controller.
	AutoPort = "auto"
)

// Sample is a decoded status line with its arrival time.
type Sample struct {
	Timestamp time.Time
	report.Reading
}

// Port is a serial port candidate.
type Port struct {
	Name        string
	Description string
	Controller  bool
}

// Opener opens a named port.
type Opener func(name string, mode *serial.Mode) (io.ReadWriteCloser, error)

func openSerial(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(name, mode)
}

// Serial is a connection to a controller.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	open     Opener

	mu        sync.RWMutex
	conn      io.ReadWriteCloser
	samples   chan Sample
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool

	alive     atomic.Bool
	malformed atomic.Uint64
	dropped   atomic.Uint64
}

// New returns a Serial for port. AutoPort resolves on Connect.
func New(port string, baudRate int, bufSize int) *Serial {
	return newWithOpener(port, baudRate, bufSize, openSerial)
}

func newWithOpener(port string, baudRate, bufSize int, open Opener) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		open:     open,
		samples:  make(chan Sample, bufSize),
	}
}

// Ports lists serial ports, marking those that identify as a controller.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrTransport, err)
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Name
		if d.Product != "" {
			desc = d.Product
		}
		result = append(result, Port{
			Name:        d.Name,
			Description: desc,
			Controller:  d.IsUSB && strings.EqualFold(d.VID, VendorID) && strings.EqualFold(d.PID, ProductID),
		})
	}

	return result, nil
}

func findController() (string, error) {
	ports, err := Ports()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.Controller {
			return p.Name, nil
		}
	}

	return "", errors.New().WithMessage(errors.ErrResourceNotFound, "no fan controller attached")
}

// Connect opens the port and starts decoding status lines.
func (d *Serial) Connect() error {
	errFactory := errors.New()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return errFactory.WithMessage(errors.ErrInvalidOperation, "already connected")
	}

	name := d.port
	if name == AutoPort {
		found, err := findController()
		if err != nil {
			return err
		}
		name = found
	}

	conn, err := d.open(name, &serial.Mode{
		BaudRate: d.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return errFactory.WithData(errors.ErrTransport, struct {
			Port  string
			Error string
		}{name, err.Error()})
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.conn = conn
	d.cancel = cancel
	d.done = make(chan struct{})
	d.samples = make(chan Sample, d.bufSize)
	d.connected = true
	d.alive.Store(true)

	go d.readSamples(ctx, conn, d.samples, d.done)

	logger.Info().Str("port", name).Int("baud", d.baudRate).Msg("Connected to fan controller")

	return nil
}

// Close stops reading and closes the port. The sample channel is closed.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	var closeErr error
	if err := d.conn.Close(); err != nil {
		closeErr = errors.New().Wrap(errors.ErrTransport, err)
		logger.Debug().Err(err).Msg("Error closing serial port")
	}
	<-d.done

	d.conn = nil
	d.connected = false
	d.alive.Store(false)
	close(d.samples)

	return closeErr
}

// Samples returns the channel of decoded status lines for the current
// connection.
func (d *Serial) Samples() <-chan Sample {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.samples
}

// RequestStatus asks the controller for a status line.
func (d *Serial) RequestStatus() error {
	return d.send(report.CommandReport)
}

// EnterBootloader resets the controller into its USB bootloader. The port
// disappears afterwards.
func (d *Serial) EnterBootloader() error {
	return d.send(report.CommandBootloader)
}

// IsConnected reports whether the port is open and still readable.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.connected && d.alive.Load()
}

// Malformed returns the number of lines that failed to parse.
func (d *Serial) Malformed() uint64 {
	return d.malformed.Load()
}

// Dropped returns the number of samples lost to a full channel.
func (d *Serial) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Serial) send(cmd report.Command) error {
	errFactory := errors.New()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return errFactory.New(errors.ErrNotConnected)
	}

	if _, err := d.conn.Write([]byte{byte(cmd), '\n'}); err != nil {
		return errFactory.Wrap(errors.ErrTransport, err)
	}

	return nil
}

func (d *Serial) readSamples(ctx context.Context, r io.Reader, out chan<- Sample, done chan<- struct{}) {
	defer close(done)
	defer d.alive.Store(false)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reading, err := report.Parse(line)
		if err != nil {
			d.malformed.Add(1)
			logger.Debug().Str("line", line).Err(err).Msg("Skipping malformed status line")
			continue
		}

		select {
		case out <- Sample{Timestamp: time.Now(), Reading: reading}:
		case <-ctx.Done():
			return
		default:
			d.dropped.Add(1)
			logger.Warn().Msg("Sample channel full, dropping reading")
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("Serial read failed")
	}
}

// Poll requests a status line every period until ctx is done. Errors are
// returned only when the link is gone.
func Poll(ctx context.Context, d Device, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !d.IsConnected() {
				return errors.New().New(errors.ErrNotConnected)
			}
			if err := d.RequestStatus(); err != nil {
				return err
			}
		}
	}
}
