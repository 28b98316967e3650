package util

import "math"

// SafeInt64Diff computes u1-u2 for counters that only ever grow,
// clamping to 0 on underflow or when the difference exceeds int64
// range, so a wrapped counter can't produce a nonsense negative stat.
func SafeInt64Diff(u1, u2 uint64) int64 {
	if u1 < u2 {
		return 0
	}
	if diff := u1 - u2; diff <= math.MaxInt64 {
		return int64(diff)
	}
	return 0
}
