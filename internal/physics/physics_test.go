package physics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAltitudeToPressure(t *testing.T) {
	assert.InDelta(t, P0, AltitudeToPressure(0), 1e-9)
	assert.InDelta(t, P0, AltitudeToPressure(-50), 1e-9)
	assert.InDelta(t, 898.7, AltitudeToPressure(1000), 0.5)
	assert.InDelta(t, 616.4, AltitudeToPressure(4000), 0.5)
	assert.InDelta(t, TropopausePress, AltitudeToPressure(TropopauseAltM), 0.1)
	assert.Less(t, AltitudeToPressure(15000), TropopausePress)
}

func TestConversions(t *testing.T) {
	assert.InDelta(t, 9.7192, KmhToKnots(18), 1e-3)
	assert.InDelta(t, 3280.84, MetersToFeet(1000), 1e-2)
}

func TestCalculateMagneticVariation(t *testing.T) {
	// Southern France declination is small and east of true north
	d, ok := CalculateMagneticVariation(44.47, 1.39, 300, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Skip("WMM coefficients not valid for the test date")
	}
	assert.InDelta(t, 2.0, d, 2.5)
}
