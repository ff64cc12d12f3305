package audio

import "math"

// volumeToPower maps a 0..1 linear volume onto beep's base-2 exponent.
// 1 is unity gain; anything at or below 0.01 is treated as silent.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}
