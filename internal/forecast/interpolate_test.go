package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualLevel(t *testing.T) {
	z := []float64{100, 300, 500}

	tests := []struct {
		name     string
		altitude float64
		want     float64
		wantOK   bool
	}{
		{name: "midway first layer", altitude: 200, want: 0.5, wantOK: true},
		{name: "quarter second layer", altitude: 350, want: 1.25, wantOK: true},
		{name: "exactly lowest level", altitude: 100, want: 0, wantOK: true},
		{name: "exactly inner level", altitude: 300, want: 1, wantOK: true},
		{name: "below grid", altitude: 99.9, wantOK: false},
		{name: "exactly top level", altitude: 500, wantOK: false},
		{name: "above grid", altitude: 600, wantOK: false},
		{name: "nan", altitude: math.NaN(), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := VirtualLevel(tt.altitude, z)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestVirtualLevelEmptyGrid(t *testing.T) {
	_, ok := VirtualLevel(10, nil)
	assert.False(t, ok)
}

func TestVirtualLevelRoundTrip(t *testing.T) {
	grids := [][]float64{
		{100, 300, 500},
		{12.5, 40, 95.25, 180, 420, 1100, 2600, 5100},
		{0, 1, 2, 3, 4},
	}

	for _, z := range grids {
		top := z[len(z)-1]
		for a := z[0]; a < top; a += (top - z[0]) / 97 {
			level, ok := VirtualLevel(a, z)
			require.True(t, ok, "altitude %g in %v", a, z)
			assert.GreaterOrEqual(t, level, 0.0)
			assert.Less(t, level, float64(len(z)-1))
			assert.InDelta(t, a, Interpolate(level, z), 1e-9)
		}
	}
}

func TestVirtualLevelDuplicateAltitudes(t *testing.T) {
	// Equal neighbours are bracketed over, never divided by
	z := []float64{100, 200, 200, 300}

	level, ok := VirtualLevel(200, z)
	require.True(t, ok)
	assert.Equal(t, 2.0, level)

	level, ok = VirtualLevel(150, z)
	require.True(t, ok)
	assert.Equal(t, 0.5, level)

	level, ok = VirtualLevel(250, z)
	require.True(t, ok)
	assert.Equal(t, 2.5, level)
	assert.False(t, math.IsNaN(level) || math.IsInf(level, 0))
}

func TestInterpolate(t *testing.T) {
	values := []float64{1, 2, 3}

	assert.Equal(t, 1.5, Interpolate(0.5, values))
	assert.Equal(t, 2.75, Interpolate(1.75, values))

	// Integer levels return the stored value exactly
	for k, v := range values {
		assert.Equal(t, v, Interpolate(float64(k), values))
	}
}

func TestInterpolateScenario(t *testing.T) {
	frame := &HourlyFrame{
		Z: []float64{100, 300, 500},
		U: []float64{1, 2, 3},
		V: []float64{0, 0, 0},
	}

	level, ok := frame.VirtualLevel(200)
	require.True(t, ok)
	assert.Equal(t, 0.5, level)

	u, v := frame.WindAt(level)
	assert.Equal(t, 1.5, u)
	assert.Equal(t, 0.0, v)

	_, ok = frame.VirtualLevel(600)
	assert.False(t, ok)
}
