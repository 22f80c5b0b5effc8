package services

import (
	"fmt"
	"math"
	"strconv"

	"github.com/valpere/geopogoda/internal/locations"
	"github.com/valpere/geopogoda/pkg/weather"
)

// RoundTenths rounds x to one decimal place, halves away from zero.
func RoundTenths(x float64) float64 {
	return math.Round(x*10) / 10
}

// FahrenheitToCelsius converts without rounding.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// wholeDegrees renders a temperature rounded to the nearest integer, halves
// away from zero. x must be the unrounded reading: rounding to tenths first
// would turn 46.45 into 47. Converting through int drops the sign of negative zero.
func wholeDegrees(x float64) string {
	return strconv.Itoa(int(math.Round(x)))
}

// FormatReply renders the chat reply for a resolved location and a reading.
//
//	The weather in "Boston, MA" currently 46F/8C and partly cloudy
func FormatReply(rec locations.Record, conditions weather.Conditions) string {
	fahrenheit := conditions.Temperature
	celsius := FahrenheitToCelsius(fahrenheit)

	return fmt.Sprintf("The weather in \"%s\" currently %sF/%sC and %s",
		rec.DisplayName, wholeDegrees(fahrenheit), wholeDegrees(celsius), conditions.Summary)
}
