package efactor

import (
	"fmt"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// Weather thresholds and total adjustments in points
const (
	StrongWindMPH   = 20.0
	ModerateWindMPH = 15.0
	ColdTempF       = 20.0

	StrongWindPoints   = -3.5
	ModerateWindPoints = -2.0
	HeavyPrecipPoints  = -1.5
	LightPrecipPoints  = -0.5
	ColdTemperaturePts = -1.0
)

// WeatherAdjustment is the weather effect on a game total
type WeatherAdjustment struct {
	TotalPoints float64
	Reasons     []string
}

// WeatherTotalAdjustment maps a forecast onto a points adjustment of the
// projected total. Indoor venues and missing forecasts adjust nothing.
func WeatherTotalAdjustment(f *models.WeatherForecast) WeatherAdjustment {
	var adj WeatherAdjustment
	if f == nil || f.Indoor {
		return adj
	}

	switch {
	case f.WindMPH >= StrongWindMPH:
		adj.TotalPoints += StrongWindPoints
		adj.Reasons = append(adj.Reasons, fmt.Sprintf("wind %.0f mph", f.WindMPH))
	case f.WindMPH >= ModerateWindMPH:
		adj.TotalPoints += ModerateWindPoints
		adj.Reasons = append(adj.Reasons, fmt.Sprintf("wind %.0f mph", f.WindMPH))
	}

	switch f.Precipitation {
	case models.PrecipitationHeavy:
		adj.TotalPoints += HeavyPrecipPoints
		adj.Reasons = append(adj.Reasons, "heavy precipitation")
	case models.PrecipitationLight:
		adj.TotalPoints += LightPrecipPoints
		adj.Reasons = append(adj.Reasons, "light precipitation")
	}

	if f.TemperatureF <= ColdTempF {
		adj.TotalPoints += ColdTemperaturePts
		adj.Reasons = append(adj.Reasons, fmt.Sprintf("temperature %.0fF", f.TemperatureF))
	}

	return adj
}
