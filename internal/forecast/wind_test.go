package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindSpeed(t *testing.T) {
	assert.Equal(t, 0.0, WindSpeed(0, 0))
	assert.InDelta(t, 18.0, WindSpeed(3, 4), 1e-12)
	assert.InDelta(t, 18.0, WindSpeed(-3, -4), 1e-12)
}

func TestWindAngle(t *testing.T) {
	tests := []struct {
		u, v float64
		want float64
	}{
		{u: 0, v: 1, want: -90},
		{u: 1, v: 0, want: 0},
		{u: 0, v: -1, want: 90},
		{u: -1, v: 0, want: -180},
		{u: 1, v: 1, want: -45},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, WindAngle(tt.u, tt.v), 1e-9, "u=%g v=%g", tt.u, tt.v)
	}
}

func TestWindArrowSize(t *testing.T) {
	assert.Equal(t, 10.0, WindArrowSize(0))
	assert.InDelta(t, 17.0, WindArrowSize(12), 1e-12)
	assert.Equal(t, 40.0, WindArrowSize(60))
	assert.Equal(t, 40.0, WindArrowSize(1000))
}

func TestWindArrowColor(t *testing.T) {
	tests := []struct {
		speed float64
		want  string
	}{
		{0, "black"},
		{2.999, "black"},
		{3.0, "#0080ff"},
		{5.9, "#0080ff"},
		{6, "#00ffff"},
		{10, "#00ff80"},
		{15, "#00ff00"},
		{20, "#80ff00"},
		{25, "#ffff00"},
		{30, "#ffbf00"},
		{35, "#ff8000"},
		{39.99, "#ff8000"},
		{40, "#ff0000"},
		{120, "#ff0000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WindArrowColor(tt.speed), "speed %g", tt.speed)
	}
}
