package degrees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromInt(t *testing.T) {
	assert.Equal(t, Degrees(50<<12), FromInt(50))
	assert.Equal(t, int32(50), FromInt(50).Int())
	assert.Equal(t, int32(-3), FromInt(-3).Int())
	assert.Equal(t, "48", FromInt(48).String())
}

func TestIntFloors(t *testing.T) {
	assert.Equal(t, int32(41), Degrees(169984).Int()) // 41.5
	assert.Equal(t, int32(-52), Degrees(-209691).Int())
	assert.Equal(t, "-52", Degrees(-209691).String())
}

func TestMilliCelsius(t *testing.T) {
	assert.Equal(t, int32(41500), Degrees(169984).MilliCelsius())
	assert.Equal(t, int32(50000), FromInt(50).MilliCelsius())
}

func TestFromMilliCelsius(t *testing.T) {
	assert.Equal(t, FromInt(50), FromMilliCelsius(50000))
	assert.Equal(t, FromInt(-3), FromMilliCelsius(-3000))
	assert.Equal(t, Degrees(169984), FromMilliCelsius(41500))
	assert.Equal(t, Max, FromMilliCelsius(200000))
	assert.Equal(t, Min, FromMilliCelsius(-200000))

	for _, m := range []int32{-127999, -1, 0, 1, 999, 22986, 41504, 127999} {
		assert.Equal(t, m, FromMilliCelsius(m).MilliCelsius(), "%d m°C", m)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		want Degrees
	}{
		{"open divider", 0, InterceptFixed},
		{"one count", 1, 269281},
		{"quarter scale", 1024, 210990},
		{"mid scale", 2048, 94324},
		{"three quarters", 3000, -209691},
		{"saturates low", 3500, Min},
		{"full scale", MaxRaw, Min},
		{"beyond full scale", 4096, Min},
		{"garbage", 0xffff, Min},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Convert(tt.raw))
		})
	}
}

func TestConvertMidScaleRendersAs23(t *testing.T) {
	assert.Equal(t, "23", Convert(2048).String())
}

func TestConvertIsMonotone(t *testing.T) {
	prev := Convert(0)
	for raw := 1; raw <= 0xffff; raw++ {
		cur := Convert(uint16(raw))
		if !assert.LessOrEqual(t, cur, prev, "raw=%d", raw) {
			return
		}
		assert.GreaterOrEqual(t, cur, Min)
		assert.LessOrEqual(t, cur, Max)
		prev = cur
	}
}
