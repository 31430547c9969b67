package model

// SignalPattern holds the synthesis parameters for one metric. Immutable
// after construction; one pattern may drive the same metric on many devices.
type SignalPattern struct {
	// Base is the reference value the daily cycle oscillates around.
	Base float64
	// Variance scales the rare transient spikes.
	Variance float64
	// DriftPerHour is added cumulatively per hour elapsed since local midnight.
	DriftPerHour float64
	// HourlyOffsets holds one additive offset per hour of day; generation
	// interpolates linearly between the current and next hour's entry.
	HourlyOffsets [24]float64
	// NoiseLevel scales bounded random noise relative to the base value.
	NoiseLevel float64
}
