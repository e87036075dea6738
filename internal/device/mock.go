package device

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"codeberg.org/mutker/fanctl/internal/acquisition"
	"codeberg.org/mutker/fanctl/internal/control"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/firmware"
	"codeberg.org/mutker/fanctl/internal/hal"
	"codeberg.org/mutker/fanctl/internal/sim"
)

// Sampling selects how the emulated firmware reads the thermistor.
type Sampling string

const (
	// SamplingDMA streams conversions into a buffer and averages snapshots.
	SamplingDMA Sampling = "dma"
	// SamplingPolled takes one conversion per cycle through a running average.
	SamplingPolled Sampling = "polled"
)

// MockConfig configures the emulated controller.
type MockConfig struct {
	Scenario *sim.Scenario
	Params   control.Params
	Firmware firmware.Config
	Sampling Sampling
	// TxCapacity bounds the unread controller output. Zero means
	// DefaultTxCapacity.
	TxCapacity int
}

// DefaultMockConfig runs the default scenario with the device calibration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		Scenario:   sim.DefaultScenario(),
		Params:     control.DefaultParams(),
		Firmware:   firmware.DefaultConfig(),
		Sampling:   SamplingDMA,
		TxCapacity: DefaultTxCapacity,
	}
}

// Emulator runs the controller firmware on a simulated board and exposes
// its USB serial port as an in-memory stream.
type Emulator struct {
	cfg   MockConfig
	board *sim.Board

	mu      sync.Mutex
	running bool
	release func()
	loop    *control.Loop
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	rx      bytes.Buffer
	tx      *txQueue

	resets atomic.Int32
}

func NewEmulator(cfg MockConfig) *Emulator {
	if cfg.Scenario == nil {
		cfg.Scenario = sim.DefaultScenario()
	}
	if cfg.Params.PWMTicks == 0 {
		cfg.Params = control.DefaultParams()
	}
	if cfg.Sampling == "" {
		cfg.Sampling = SamplingDMA
	}
	if cfg.TxCapacity <= 0 {
		cfg.TxCapacity = DefaultTxCapacity
	}

	return &Emulator{
		cfg:   cfg,
		board: sim.NewBoard(cfg.Scenario),
	}
}

// Board returns the simulated hardware.
func (e *Emulator) Board() *sim.Board {
	return e.board
}

// Resets returns the number of bootloader requests received.
func (e *Emulator) Resets() int {
	return int(e.resets.Load())
}

// DroppedWrites returns the output the running controller dropped because
// the host was not reading.
func (e *Emulator) DroppedWrites() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tx == nil {
		return 0
	}

	return e.tx.Dropped()
}

// Status returns the firmware's current status, or false if it is not
// running.
func (e *Emulator) Status() (control.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return control.Status{}, false
	}

	return e.loop.Status(), true
}

// Open powers the emulated controller up. It matches Opener.
func (e *Emulator) Open(_ string, _ *serial.Mode) (io.ReadWriteCloser, error) {
	errFactory := errors.New()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, errFactory.WithMessage(errors.ErrResourceBusy, "emulated port already open")
	}
	prev := e.stopped
	e.mu.Unlock()

	// A reset still in progress must finish releasing the hardware.
	if prev != nil {
		<-prev
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil, errFactory.WithMessage(errors.ErrResourceBusy, "emulated port already open")
	}

	// Every power-up gets fresh peripherals, like a reset.
	p := e.board.Peripherals()
	adc, err := p.TakeADC()
	if err != nil {
		return nil, err
	}
	indicator, err := p.TakeIndicator()
	if err != nil {
		return nil, err
	}
	fan, err := p.TakeFan()
	if err != nil {
		return nil, err
	}

	src, release, err := e.startSampling(p, adc)
	if err != nil {
		return nil, err
	}
	loop, err := control.New(src, fan, e.cfg.Params, control.WithIndicator(indicator))
	if err != nil {
		release()
		return nil, err
	}

	fw := e.cfg.Firmware
	fw.Bootloader = e.bootloader
	rt, err := firmware.New(loop, fw)
	if err != nil {
		release()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.tx = newTxQueue(e.cfg.TxCapacity)
	e.rx.Reset()
	e.release = release
	e.loop = loop
	e.cancel = cancel
	e.done = make(chan struct{})
	e.stopped = make(chan struct{})
	e.running = true

	go func(done chan struct{}) {
		defer close(done)
		_ = rt.Run(ctx, &emulatorPort{e: e})
	}(e.done)

	return &emulatorConn{e: e, tx: e.tx}, nil
}

func (e *Emulator) startSampling(p *hal.Peripherals, adc hal.ADC) (control.TemperatureSource, func(), error) {
	switch e.cfg.Sampling {
	case SamplingDMA:
		dma, err := p.TakeDMA(0)
		if err != nil {
			return nil, nil, err
		}
		heartbeat, err := p.TakeHeartbeat()
		if err != nil {
			return nil, nil, err
		}
		token, err := acquisition.Start(adc, dma, heartbeat, p.Interrupts(), nil)
		if err != nil {
			return nil, nil, err
		}

		return acquisition.NewSensorSource(token), token.Release, nil
	case SamplingPolled:
		return acquisition.NewPolled(adc), func() {}, nil
	default:
		return nil, nil, errors.New().WithData(errors.ErrInvalidConfig, e.cfg.Sampling)
	}
}

// bootloader drops the link the way a real reset does.
func (e *Emulator) bootloader() {
	e.resets.Add(1)
	go e.powerOff()
}

func (e *Emulator) powerOff() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done, stopped, tx, release := e.cancel, e.done, e.stopped, e.tx, e.release
	e.mu.Unlock()

	cancel()
	tx.Close()
	<-done
	release()
	close(stopped)
}

// Close stops the emulator and its simulated hardware.
func (e *Emulator) Close() {
	e.powerOff()

	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped != nil {
		<-stopped
	}

	e.board.Close()
}

// emulatorPort is the firmware side of the link.
type emulatorPort struct {
	e *Emulator
}

func (p *emulatorPort) Buffered() int {
	p.e.mu.Lock()
	defer p.e.mu.Unlock()

	return p.e.rx.Len()
}

func (p *emulatorPort) ReadByte() (byte, error) {
	p.e.mu.Lock()
	defer p.e.mu.Unlock()

	return p.e.rx.ReadByte()
}

func (p *emulatorPort) Write(b []byte) (int, error) {
	p.e.mu.Lock()
	tx := p.e.tx
	p.e.mu.Unlock()

	return tx.Write(b)
}

// emulatorConn is the host side of the link.
type emulatorConn struct {
	e  *Emulator
	tx *txQueue
}

func (c *emulatorConn) Read(b []byte) (int, error) {
	return c.tx.Read(b)
}

func (c *emulatorConn) Write(b []byte) (int, error) {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()

	if !c.e.running {
		return 0, io.ErrClosedPipe
	}

	return c.e.rx.Write(b)
}

func (c *emulatorConn) Close() error {
	c.e.powerOff()
	c.tx.Close()
	return nil
}

// DefaultTxCapacity is the number of unread bytes the emulated controller
// buffers before dropping writes.
const DefaultTxCapacity = 4096

// txQueue is the controller's transmit buffer. Writes never block: like a
// CDC endpoint nobody reads, a full queue drops the write.
type txQueue struct {
	mu       sync.Mutex
	ready    *sync.Cond
	buf      bytes.Buffer
	capacity int
	closed   bool
	dropped  int
}

func newTxQueue(capacity int) *txQueue {
	q := &txQueue{capacity: capacity}
	q.ready = sync.NewCond(&q.mu)

	return q
}

func (q *txQueue) Write(b []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, io.ErrClosedPipe
	}
	if q.buf.Len()+len(b) > q.capacity {
		q.dropped++
		return 0, errors.New().WithMessage(errors.ErrResourceExhausted, "emulated transmit buffer full")
	}

	q.buf.Write(b)
	q.ready.Broadcast()

	return len(b), nil
}

// Read blocks until data is queued or the queue is closed. Queued data is
// still returned after Close; then Read reports io.EOF.
func (q *txQueue) Read(b []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.buf.Len() == 0 && !q.closed {
		q.ready.Wait()
	}
	if q.buf.Len() == 0 {
		return 0, io.EOF
	}

	return q.buf.Read(b)
}

func (q *txQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.ready.Broadcast()
}

func (q *txQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropped
}

// NewMock returns a Serial attached to a fresh emulator.
func NewMock(cfg MockConfig) (*Serial, *Emulator) {
	emu := NewEmulator(cfg)

	return newWithOpener("emulator", DefaultBaudRate, DefaultBufferSize, emu.Open), emu
}
