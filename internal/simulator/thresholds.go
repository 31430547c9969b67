package simulator

import (
	"fmt"

	"github.com/growlab/growcore/internal/model"
)

type thresholdBand struct {
	Low  float64
	High float64
}

// thresholds are the fixed alerting bands per tracked metric. Metrics outside
// this table never alert.
var thresholds = map[string]thresholdBand{
	"temperature":   {Low: 18, High: 30},
	"humidity":      {Low: 40, High: 70},
	"co2":           {Low: 350, High: 1500},
	"ph":            {Low: 5.5, High: 6.5},
	"ec":            {Low: 0.8, High: 2.5},
	"water_temp":    {Low: 16, High: 24},
	"soil_moisture": {Low: 30, High: 80},
	"vpd":           {Low: 0.4, High: 1.6},
}

// recommendations are the canned remediation hints keyed by alert type.
var recommendations = map[string]string{
	"temperature_high":   "Increase exhaust fan speed or lower the light intensity.",
	"temperature_low":    "Raise the heater setpoint and check for cold drafts.",
	"humidity_high":      "Run the dehumidifier and increase air circulation.",
	"humidity_low":       "Run the humidifier or mist the room.",
	"co2_high":           "Ventilate the room and check the CO2 regulator.",
	"co2_low":            "Check the CO2 supply and tighten enrichment tubing.",
	"ph_high":            "Dose pH-down and recalibrate the pH probe.",
	"ph_low":             "Dose pH-up and recalibrate the pH probe.",
	"ec_high":            "Dilute the reservoir with plain water.",
	"ec_low":             "Add nutrient concentrate to the reservoir.",
	"water_temp_high":    "Add a chiller or shade the reservoir.",
	"water_temp_low":     "Add a reservoir heater.",
	"soil_moisture_high": "Pause irrigation and improve drainage.",
	"soil_moisture_low":  "Trigger an irrigation cycle.",
	"vpd_high":           "Raise humidity or lower temperature to reduce transpiration stress.",
	"vpd_low":            "Lower humidity or raise temperature to improve transpiration.",
}

const defaultRecommendation = "Inspect the device and verify sensor calibration."

// checkThresholds builds one alert per breached metric on the profile.
func checkThresholds(p model.DeviceProfile) []model.SensorAlert {
	var alerts []model.SensorAlert
	for metric, value := range p.CurrentValues {
		band, ok := thresholds[metric]
		if !ok {
			continue
		}
		switch {
		case value > band.High:
			alertType := metric + "_high"
			alerts = append(alerts, model.NewSensorAlert(
				p.ID, p.RoomID, alertType, model.SeverityHigh,
				fmt.Sprintf("%s on %s is above range: %.1f (limit %.1f)", metric, p.Name, value, band.High),
				recommendationFor(alertType),
			))
		case value < band.Low:
			alertType := metric + "_low"
			alerts = append(alerts, model.NewSensorAlert(
				p.ID, p.RoomID, alertType, model.SeverityMedium,
				fmt.Sprintf("%s on %s is below range: %.1f (limit %.1f)", metric, p.Name, value, band.Low),
				recommendationFor(alertType),
			))
		}
	}
	return alerts
}

func recommendationFor(alertType string) string {
	if r, ok := recommendations[alertType]; ok {
		return r
	}
	return defaultRecommendation
}
