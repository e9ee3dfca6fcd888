// Package aqi converts PM2.5 concentrations to EPA Air Quality Index
// categories and values.
//
// The breakpoints follow the EPA's 2012 revision of the PM2.5 standard
// (24-hour averaged concentrations, µg/m³):
//   - Good: 0.0-12.0
//   - Moderate: 12.1-35.4
//   - Unhealthy for Sensitive Groups: 35.5-55.4
//   - Unhealthy: 55.5-150.4
//   - Very Unhealthy: 150.5-250.4
//   - Hazardous: 250.5-500.4
//
// Concentrations are truncated to one decimal place before banding, per
// the EPA reporting rule. Values above the top breakpoint clamp to
// Hazardous.
package aqi

import (
	"math"

	"github.com/airsift/airsift/pkg/errors"
)

// Category is an AQI band, ordered from least to most severe. The ordinal
// values are stable and used as class indices throughout the study.
type Category int

const (
	Good Category = iota
	Moderate
	UnhealthySensitive
	Unhealthy
	VeryUnhealthy
	Hazardous
)

// NumCategories is the number of AQI bands.
const NumCategories = 6

var categoryNames = [NumCategories]string{
	"Good",
	"Moderate",
	"Unhealthy for Sensitive Groups",
	"Unhealthy",
	"Very Unhealthy",
	"Hazardous",
}

// String returns the EPA display name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= NumCategories {
		return "Unknown"
	}
	return categoryNames[c]
}

// Ordinal returns the stable class index of the category.
func (c Category) Ordinal() int {
	return int(c)
}

// Categories returns all bands in severity order.
func Categories() []Category {
	return []Category{Good, Moderate, UnhealthySensitive, Unhealthy, VeryUnhealthy, Hazardous}
}

// CategoryNames returns the display names in severity order.
func CategoryNames() []string {
	names := make([]string, NumCategories)
	copy(names, categoryNames[:])
	return names
}

// breakpoint maps a concentration band to its AQI value band.
type breakpoint struct {
	cLo, cHi float64
	iLo, iHi float64
	category Category
}

var breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50, Good},
	{12.1, 35.4, 51, 100, Moderate},
	{35.5, 55.4, 101, 150, UnhealthySensitive},
	{55.5, 150.4, 151, 200, Unhealthy},
	{150.5, 250.4, 201, 300, VeryUnhealthy},
	{250.5, 500.4, 301, 500, Hazardous},
}

// CategoryBounds returns the upper PM2.5 concentration of each category
// band in category order, for drawing band boundaries on plots.
func CategoryBounds() []float64 {
	bounds := make([]float64, len(breakpoints))
	for i, bp := range breakpoints {
		bounds[i] = bp.cHi
	}
	return bounds
}

// truncate applies the EPA one-decimal truncation rule.
func truncate(pm25 float64) float64 {
	return math.Trunc(pm25*10) / 10
}

// Categorize returns the AQI band for a PM2.5 concentration in µg/m³.
func Categorize(pm25 float64) (Category, error) {
	if math.IsNaN(pm25) {
		return Good, errors.NewValueError("Categorize", "concentration is NaN")
	}
	if pm25 < 0 {
		return Good, errors.NewValueError("Categorize", "concentration must be non-negative")
	}

	c := truncate(pm25)
	for _, bp := range breakpoints {
		if c <= bp.cHi {
			return bp.category, nil
		}
	}
	return Hazardous, nil
}

// Index returns the numeric AQI value for a PM2.5 concentration using
// EPA piecewise-linear interpolation, rounded to the nearest integer.
// Concentrations above the top breakpoint clamp to the maximum value.
func Index(pm25 float64) (float64, error) {
	if math.IsNaN(pm25) {
		return 0, errors.NewValueError("Index", "concentration is NaN")
	}
	if pm25 < 0 {
		return 0, errors.NewValueError("Index", "concentration must be non-negative")
	}

	c := truncate(pm25)
	for _, bp := range breakpoints {
		if c <= bp.cHi {
			v := (bp.iHi-bp.iLo)/(bp.cHi-bp.cLo)*(c-bp.cLo) + bp.iLo
			return math.Round(v), nil
		}
	}
	return breakpoints[len(breakpoints)-1].iHi, nil
}

// OrdinalLabels categorizes every concentration and returns the class
// indices, the form the sampling and modeling layers consume.
func OrdinalLabels(pm25 []float64) ([]int, error) {
	if len(pm25) == 0 {
		return nil, errors.NewModelError("OrdinalLabels", "empty concentrations", errors.ErrEmptyData)
	}

	labels := make([]int, len(pm25))
	for i, v := range pm25 {
		cat, err := Categorize(v)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		labels[i] = cat.Ordinal()
	}
	return labels, nil
}
