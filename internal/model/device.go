package model

import "time"

// DeviceType groups simulated devices by the kind of metrics they report.
type DeviceType string

const (
	DeviceEnvironmental DeviceType = "environmental"
	DeviceHydroponic    DeviceType = "hydroponic"
	DeviceLighting      DeviceType = "lighting"
	DeviceSoil          DeviceType = "soil"
	DeviceAir           DeviceType = "air"
	DeviceCustom        DeviceType = "custom"
)

// DeviceProfile is the configuration and current-value state of one simulated
// sensor. Ranges maps each metric to its configured maximum; generated values
// are clamped to [0.8*max, 1.2*max]. The profile is owned by the simulator
// and mutated only on its control path.
type DeviceProfile struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	RoomID         string             `json:"room_id"`
	Type           DeviceType         `json:"type"`
	Ranges         map[string]float64 `json:"ranges"`
	CurrentValues  map[string]float64 `json:"current_values,omitempty"`
	UpdateInterval time.Duration      `json:"update_interval"`
	Enabled        bool               `json:"enabled"`
}

// Clone returns a deep copy, so snapshots handed to callers never alias the
// simulator-owned maps.
func (p DeviceProfile) Clone() DeviceProfile {
	out := p
	out.Ranges = make(map[string]float64, len(p.Ranges))
	for k, v := range p.Ranges {
		out.Ranges[k] = v
	}
	out.CurrentValues = make(map[string]float64, len(p.CurrentValues))
	for k, v := range p.CurrentValues {
		out.CurrentValues[k] = v
	}
	return out
}
