package units

import (
	"math"
	"testing"
)

func TestConvertDistance(t *testing.T) {
	tests := []struct {
		name       string
		distanceCM float64
		units      string
		expected   float64
	}{
		{"100 cm to in", 100.0, IN, 39.3701},
		{"100 cm to m", 100.0, M, 1.0},
		{"100 cm to cm", 100.0, CM, 100.0},
		{"unknown units default to cm", 100.0, "unknown", 100.0},
		{"0 cm to in", 0.0, IN, 0.0},
		{"sensor ceiling 400 cm to m", 400.0, M, 4.0},
		{"doorway 75 cm to in", 75.0, IN, 29.5276}, // ~29.5 in
		{"close obstacle 12 cm to in", 12.0, IN, 4.72441},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertDistance(tt.distanceCM, tt.units)
			if math.Abs(result-tt.expected) > 0.01 { // Allow small floating point differences
				t.Errorf("ConvertDistance(%f, %s) = %f, want %f", tt.distanceCM, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid cm", CM, true},
		{"valid in", IN, true},
		{"valid m", M, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "CM", false},
		{"case sensitive", "In", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "cm, in, m"
	result := GetValidUnitsString()
	if result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}

// Test conversion accuracy with known values
func TestConversionAccuracy(t *testing.T) {
	tests := []struct {
		name       string
		distanceCM float64
		unit       string
		expected   float64
	}{
		// 1 in = 2.54 cm exactly
		{"2.54 cm to in", 2.54, IN, 1.0},
		{"25.4 cm to in", 25.4, IN, 10.0},

		// metric
		{"1 cm to m", 1.0, M, 0.01},
		{"250 cm to m", 250.0, M, 2.5},

		// identity
		{"5 cm to cm", 5.0, CM, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertDistance(tt.distanceCM, tt.unit)
			if math.Abs(result-tt.expected) > 0.0001 { // Very precise check
				t.Errorf("ConvertDistance(%f, %s) = %f, want %f", tt.distanceCM, tt.unit, result, tt.expected)
			}
		})
	}
}
