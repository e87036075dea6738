package hal

import (
	"sync"
	"testing"

	"codeberg.org/mutker/fanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pin struct{ high bool }

func (p *pin) Set(high bool) { p.high = high }
func (p *pin) Get() bool     { return p.high }

type pwm struct{ duty uint32 }

func (p *pwm) Set(duty uint32) { p.duty = duty }
func (*pwm) Top() uint32       { return 5000 }

func TestGuardSerializesAccess(t *testing.T) {
	g := NewGuard[int](nil, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				g.With(func(v *int) { *v++ })
			}
		}()
	}
	wg.Wait()

	var got int
	g.With(func(v *int) { got = *v })
	assert.Equal(t, 8000, got)
}

func TestClaim(t *testing.T) {
	var c Claim

	require.NoError(t, c.Take("adc"))
	assert.True(t, c.Held())

	err := c.Take("adc")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrResourceBusy))

	c.Release()
	assert.False(t, c.Held())
	assert.NoError(t, c.Take("adc"))
}

func TestPeripheralsTakeOnce(t *testing.T) {
	p := NewPeripherals(Board{
		Heartbeat: &pin{},
		Fan:       &pwm{},
	})

	hb, err := p.TakeHeartbeat()
	require.NoError(t, err)
	assert.NotNil(t, hb)

	_, err = p.TakeHeartbeat()
	assert.True(t, errors.HasCode(err, errors.ErrResourceBusy))

	fan, err := p.TakeFan()
	require.NoError(t, err)
	assert.Equal(t, uint32(5000), fan.Top())

	_, err = p.TakeADC()
	assert.True(t, errors.HasCode(err, errors.ErrResourceNotFound))

	_, err = p.TakeDMA(3)
	assert.True(t, errors.HasCode(err, errors.ErrResourceNotFound))
}
