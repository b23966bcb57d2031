// Package units provides shared constants and validation for distance units
package units

// Unit constants
const (
	CM = "cm"
	IN = "in"
	M  = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{CM, IN, M}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "cm, in, m"
}

// ConvertDistance converts a distance from centimeters to the target units.
// Ranging sensors report centimeters; that is what the store and database hold.
func ConvertDistance(distanceCM float64, targetUnits string) float64 {
	switch targetUnits {
	case CM:
		return distanceCM
	case IN:
		return distanceCM / 2.54
	case M:
		return distanceCM / 100
	default:
		return distanceCM
	}
}
