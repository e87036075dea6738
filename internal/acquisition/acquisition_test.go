package acquisition

import (
	"testing"
	"time"

	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
	"codeberg.org/mutker/fanctl/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"
)

func newBoard(t *testing.T, interval time.Duration) *sim.Board {
	t.Helper()

	b := sim.NewBoard(&sim.Scenario{
		Interval: interval,
		Steps:    []sim.Step{{Temperature: 30, Duration: time.Second}},
	})
	t.Cleanup(b.Close)

	return b
}

func start(t *testing.T, b *sim.Board) *Token {
	t.Helper()

	p := b.Peripherals()
	adc, err := p.TakeADC()
	require.NoError(t, err)
	dma, err := p.TakeDMA(0)
	require.NoError(t, err)
	hb, err := p.TakeHeartbeat()
	require.NoError(t, err)

	tok, err := Start(adc, dma, hb, p.Interrupts(), nil)
	require.NoError(t, err)
	t.Cleanup(tok.Release)

	return tok
}

func TestFailSafeBeforeFirstTransfer(t *testing.T) {
	b := newBoard(t, time.Hour)
	tok := start(t, b)

	assert.Equal(t, degrees.FromInt(50), tok.CurrentTemperature())
	_, ok := tok.Snapshot()
	assert.False(t, ok)
}

func TestCurrentTemperatureTracksThermistor(t *testing.T) {
	b := newBoard(t, time.Millisecond)
	b.ADC.SetTemperature(41.5)
	tok := start(t, b)

	want := degrees.Convert(sim.RawForTemperature(41.5))
	assert.Eventually(t, func() bool {
		return tok.CurrentTemperature() == want
	}, 2*time.Second, time.Millisecond)

	samples, ok := tok.Snapshot()
	require.True(t, ok)
	for _, s := range samples {
		assert.Equal(t, sim.RawForTemperature(41.5), s)
	}

	b.ADC.SetTemperature(30)
	want = degrees.Convert(sim.RawForTemperature(30))
	assert.Eventually(t, func() bool {
		return tok.CurrentTemperature() == want
	}, 2*time.Second, time.Millisecond, "transfers keep re-arming")
}

func TestStartIsExclusive(t *testing.T) {
	b := newBoard(t, time.Hour)
	tok := start(t, b)

	other := newBoard(t, time.Hour)
	_, err := Start(other.ADC, other.DMA[0], other.Heartbeat, other.Interrupts, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrResourceBusy))

	tok.Release()

	again, err := Start(other.ADC, other.DMA[0], other.Heartbeat, other.Interrupts, nil)
	require.NoError(t, err)
	again.Release()
}

func TestReleaseStopsPipeline(t *testing.T) {
	b := newBoard(t, time.Millisecond)
	b.ADC.SetTemperature(35)
	tok := start(t, b)

	assert.Eventually(t, func() bool {
		_, ok := tok.Snapshot()
		return ok
	}, 2*time.Second, time.Millisecond)

	tok.Release()

	assert.Equal(t, FailSafe, tok.CurrentTemperature())
	assert.False(t, b.ADC.Running())
	assert.False(t, b.Interrupts.Enabled(sim.DMAIRQ0))
	assert.False(t, b.Interrupts.Registered(sim.DMAIRQ0))

	completions := tok.Stats().Completions
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, completions, tok.Stats().Completions)

	assert.NotPanics(t, tok.Release)
}

func TestHeartbeatTogglesEveryOtherCompletion(t *testing.T) {
	b := newBoard(t, time.Millisecond)
	tok := start(t, b)

	assert.Eventually(t, func() bool {
		return tok.Stats().Completions >= 7
	}, 2*time.Second, time.Millisecond)
	tok.Release()

	st := tok.Stats()
	assert.Equal(t, int(st.Completions/2), b.Heartbeat.Edges())
	assert.Zero(t, st.RearmErrors)
}

func TestStartRejectsMissingPeripherals(t *testing.T) {
	b := newBoard(t, time.Hour)

	_, err := Start(b.ADC, nil, b.Heartbeat, b.Interrupts, nil)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))

	tok := start(t, b)
	assert.NotNil(t, tok)
}

type stubHandler struct{}

func (stubHandler) HandleInterrupt() {}

func TestStartFailsWhenIRQTaken(t *testing.T) {
	b := newBoard(t, time.Hour)
	require.NoError(t, b.Interrupts.Register(sim.DMAIRQ0, stubHandler{}))

	_, err := Start(b.ADC, b.DMA[0], b.Heartbeat, b.Interrupts, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInitFailed))

	other := newBoard(t, time.Hour)
	tok := start(t, other)
	assert.NotNil(t, tok)
}

// flakyDMA accepts the first transfer and refuses every re-arm.
type flakyDMA struct {
	starts int
	acks   int
}

func (*flakyDMA) IRQ() hal.IRQ   { return sim.DMAIRQ0 }
func (*flakyDMA) EnableIRQ()     {}
func (*flakyDMA) DisableIRQ()    {}
func (d *flakyDMA) Acknowledge() { d.acks++ }

func (d *flakyDMA) Start(*hal.Transfer) error {
	d.starts++
	if d.starts > 1 {
		return errors.New().New(errors.ErrResourceBusy)
	}
	return nil
}

func TestRearmFailureIsCounted(t *testing.T) {
	b := newBoard(t, time.Hour)
	dma := &flakyDMA{}

	tok, err := Start(b.ADC, dma, b.Heartbeat, b.Interrupts, nil)
	require.NoError(t, err)
	t.Cleanup(tok.Release)

	b.Interrupts.Raise(sim.DMAIRQ0)
	b.Interrupts.Raise(sim.DMAIRQ0)

	st := tok.Stats()
	assert.Equal(t, uint32(2), st.Completions)
	assert.Equal(t, uint32(2), st.RearmErrors)
	assert.Equal(t, 2, dma.acks)
	assert.Equal(t, 1, b.Heartbeat.Edges())
}

func TestSensorInterface(t *testing.T) {
	b := newBoard(t, time.Hour)
	tok := start(t, b)

	var s drivers.Sensor = tok
	require.NoError(t, s.Update(drivers.Temperature))
	assert.Equal(t, int32(50000), tok.Temperature())

	b.Interrupts.Raise(sim.DMAIRQ0)
	require.NoError(t, s.Update(drivers.Voltage))
	assert.Equal(t, int32(50000), tok.Temperature(), "voltage updates do not touch temperature")
}

// fillingDMA completes every transfer with the same FIFO entry.
type fillingDMA struct {
	entry  uint16
	starts int
}

func (*fillingDMA) IRQ() hal.IRQ { return sim.DMAIRQ0 }
func (*fillingDMA) EnableIRQ()   {}
func (*fillingDMA) DisableIRQ()  {}
func (*fillingDMA) Acknowledge() {}

func (d *fillingDMA) Start(t *hal.Transfer) error {
	d.starts++
	for i := range t.Dest {
		t.Dest[i] = d.entry
	}
	return nil
}

func TestErrorFlagIsMasked(t *testing.T) {
	b := newBoard(t, time.Hour)
	dma := &fillingDMA{entry: 0x8000 | 2048}

	tok, err := Start(b.ADC, dma, b.Heartbeat, b.Interrupts, nil)
	require.NoError(t, err)
	t.Cleanup(tok.Release)

	b.Interrupts.Raise(sim.DMAIRQ0)
	assert.Equal(t, degrees.Convert(2048), tok.CurrentTemperature())
}

func TestSameSnapshotSameTemperature(t *testing.T) {
	b := newBoard(t, time.Hour)
	dma := &fillingDMA{entry: 1483}

	tok, err := Start(b.ADC, dma, b.Heartbeat, b.Interrupts, nil)
	require.NoError(t, err)
	t.Cleanup(tok.Release)

	b.Interrupts.Raise(sim.DMAIRQ0)
	want := tok.CurrentTemperature()
	first, ok := tok.Snapshot()
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		b.Interrupts.Raise(sim.DMAIRQ0)
		samples, _ := tok.Snapshot()
		require.Equal(t, first, samples)
		assert.Equal(t, want, tok.CurrentTemperature())
	}
	assert.Equal(t, 12, dma.starts)
}

func TestNoFailSafeAfterFirstCompletion(t *testing.T) {
	b := newBoard(t, time.Millisecond)
	b.ADC.SetTemperature(41.5)
	tok := start(t, b)

	require.Eventually(t, func() bool {
		_, ok := tok.Snapshot()
		return ok
	}, 2*time.Second, time.Millisecond)

	want := degrees.Convert(sim.RawForTemperature(41.5))
	for i := 0; i < 500; i++ {
		got := tok.CurrentTemperature()
		require.NotEqual(t, FailSafe, got, "read %d", i)
		assert.Equal(t, want, got)
	}
	assert.Positive(t, tok.Stats().Completions)
}

func TestReleaseResetsSensorReading(t *testing.T) {
	b := newBoard(t, time.Hour)
	dma := &fillingDMA{entry: 1483}

	tok, err := Start(b.ADC, dma, b.Heartbeat, b.Interrupts, nil)
	require.NoError(t, err)

	b.Interrupts.Raise(sim.DMAIRQ0)
	require.NoError(t, tok.Update(drivers.Temperature))
	assert.Equal(t, degrees.Convert(1483).MilliCelsius(), tok.Temperature())

	tok.Release()
	assert.Equal(t, FailSafe.MilliCelsius(), tok.Temperature())
}

// brokenSensor fails every update.
type brokenSensor struct{}

func (brokenSensor) Update(drivers.Measurement) error {
	return errors.New().New(errors.ErrReadTemperature)
}

func (brokenSensor) Temperature() int32 { return 20000 }

func TestSensorSource(t *testing.T) {
	b := newBoard(t, time.Hour)
	dma := &fillingDMA{entry: 1483}

	tok, err := Start(b.ADC, dma, b.Heartbeat, b.Interrupts, nil)
	require.NoError(t, err)
	t.Cleanup(tok.Release)

	src := NewSensorSource(tok)
	assert.Equal(t, FailSafe, src.CurrentTemperature(), "no transfer yet")

	b.Interrupts.Raise(sim.DMAIRQ0)
	want := degrees.Convert(1483)
	got := src.CurrentTemperature()
	assert.Equal(t, want.MilliCelsius(), got.MilliCelsius())
	assert.Equal(t, want.Int(), got.Int())
	assert.Zero(t, src.Errors())

	bad := NewSensorSource(brokenSensor{})
	assert.Equal(t, FailSafe, bad.CurrentTemperature())
	assert.Equal(t, uint32(1), bad.Errors())
}
