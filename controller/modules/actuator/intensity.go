package actuator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Duty maps an intensity percentage onto the driver range [0, maxPWM]:
// maxPWM / ((1/value) * 100), truncated. Zero maps to zero.
func Duty(value float64, maxPWM int) (int, error) {
	if math.IsNaN(value) || value < 0 || value > 100 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidIntensity, value)
	}
	if value == 0 {
		return 0, nil
	}
	return int(float64(maxPWM) * value / 100), nil
}

// NormalizeTime turns H:M or H:M:S into zero padded HH:MM:SS.
func NormalizeTime(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	limits := []int{23, 59, 59}
	vals := []int{0, 0, 0}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		vals[i] = v
	}
	return fmt.Sprintf("%02d:%02d:%02d", vals[0], vals[1], vals[2]), nil
}
