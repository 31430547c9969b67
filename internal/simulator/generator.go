package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/growlab/growcore/internal/model"
)

// Synthesis constants. New samples are blended 30/70 with the previous value
// so consecutive readings stay continuous, then clamped against the metric's
// configured maximum.
const (
	smoothingWeight  = 0.3
	spikeProbability = 0.001
	clampLowFactor   = 0.8
	clampHighFactor  = 1.2
)

// Generator computes the next sample for a metric from its SignalPattern.
// Patterns are immutable; the generator only owns the random source.
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	patterns map[string]model.SignalPattern
}

// NewGenerator builds a generator over the given per-metric patterns. A zero
// seed derives one from the clock.
func NewGenerator(patterns map[string]model.SignalPattern, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), patterns: patterns}
}

// Next produces the metric's next value at time now, smoothing against prev
// and clamping into [0.8*max, 1.2*max].
func (g *Generator) Next(metric string, prev, max float64, now time.Time) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.patterns[metric]
	if !ok {
		// No pattern configured: gentle random walk around the last value.
		v := prev * (1 + (g.rng.Float64()*2-1)*0.01)
		return clamp(v, clampLowFactor*max, clampHighFactor*max)
	}

	hour := now.Hour()
	frac := (float64(now.Minute())*60 + float64(now.Second())) / 3600

	cur := p.HourlyOffsets[hour]
	next := p.HourlyOffsets[(hour+1)%24]
	base := p.Base + cur + (next-cur)*frac

	hoursSinceMidnight := float64(hour) + frac
	base += p.DriftPerHour * hoursSinceMidnight

	v := base + (g.rng.Float64()*2-1)*p.NoiseLevel*base
	if g.rng.Float64() < spikeProbability {
		v += (g.rng.Float64()*2 - 1) * p.Variance
	}

	v = smoothingWeight*v + (1-smoothingWeight)*prev
	return clamp(v, clampLowFactor*max, clampHighFactor*max)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// heatIndexThresholdC: below this temperature the heat index degenerates to
// the dry-bulb temperature (80 °F in the Rothfusz regression).
const heatIndexThresholdC = 26.7

// saturationVaporPressure returns the Tetens estimate in kPa for tempC.
func saturationVaporPressure(tempC float64) float64 {
	return 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
}

// VaporPressureDeficit computes VPD in kPa from temperature (°C) and relative
// humidity (%), clamped to [0, 10].
func VaporPressureDeficit(tempC, relHumidity float64) float64 {
	svp := saturationVaporPressure(tempC)
	vpd := svp * (1 - relHumidity/100)
	return clamp(vpd, 0, 10)
}

// HeatIndex computes the apparent temperature in °C using the Rothfusz
// regression. Below the activation threshold it passes the temperature
// through unchanged. The result is clamped to [-10, 65].
func HeatIndex(tempC, relHumidity float64) float64 {
	if tempC <= heatIndexThresholdC {
		return tempC
	}
	tf := tempC*9/5 + 32
	rh := relHumidity

	hi := -42.379 +
		2.04901523*tf +
		10.14333127*rh -
		0.22475541*tf*rh -
		6.83783e-3*tf*tf -
		5.481717e-2*rh*rh +
		1.22874e-3*tf*tf*rh +
		8.5282e-4*tf*rh*rh -
		1.99e-6*tf*tf*rh*rh

	return clamp((hi-32)*5/9, -10, 65)
}

// DefaultPatterns covers the metrics of the default device fleet. Offsets
// model a lights-on day cycle: warm bright middays, cool nights.
func DefaultPatterns() map[string]model.SignalPattern {
	return map[string]model.SignalPattern{
		"temperature": {
			Base:         24,
			Variance:     3,
			DriftPerHour: 0.02,
			HourlyOffsets: [24]float64{
				-2.0, -2.2, -2.4, -2.5, -2.4, -2.0,
				-1.2, -0.4, 0.4, 1.0, 1.6, 2.0,
				2.3, 2.5, 2.4, 2.1, 1.6, 1.0,
				0.3, -0.3, -0.8, -1.2, -1.6, -1.8,
			},
			NoiseLevel: 0.01,
		},
		"humidity": {
			Base:         55,
			Variance:     8,
			DriftPerHour: -0.05,
			HourlyOffsets: [24]float64{
				6, 6.5, 7, 7, 6.5, 6,
				4, 2, 0, -2, -3.5, -4.5,
				-5, -5.5, -5, -4.5, -3.5, -2,
				-0.5, 1, 2.5, 4, 5, 5.5,
			},
			NoiseLevel: 0.02,
		},
		"co2": {
			Base:         850,
			Variance:     150,
			DriftPerHour: 0,
			HourlyOffsets: [24]float64{
				120, 130, 140, 140, 130, 110,
				60, 0, -60, -100, -130, -150,
				-160, -160, -150, -130, -100, -60,
				-10, 30, 60, 85, 100, 110,
			},
			NoiseLevel: 0.03,
		},
		"ph": {
			Base:       6.0,
			Variance:   0.3,
			NoiseLevel: 0.005,
		},
		"ec": {
			Base:         1.6,
			Variance:     0.2,
			DriftPerHour: 0.004,
			NoiseLevel:   0.01,
		},
		"water_temp": {
			Base:       20,
			Variance:   1.5,
			NoiseLevel: 0.005,
		},
		"soil_moisture": {
			Base:         55,
			Variance:     10,
			DriftPerHour: -0.4, // dries out over the day between irrigations
			NoiseLevel:   0.015,
		},
		"soil_temp": {
			Base:       21,
			Variance:   1,
			NoiseLevel: 0.005,
		},
		"ppfd": {
			Base:     650,
			Variance: 80,
			HourlyOffsets: [24]float64{
				-650, -650, -650, -650, -650, -650,
				-300, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0,
				-300, -650, -650, -650, -650, -650,
			},
			NoiseLevel: 0.02,
		},
	}
}
