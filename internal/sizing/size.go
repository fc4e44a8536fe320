// Package sizing provides overflow-checked size arithmetic for image offsets.
package sizing

import "math"

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Sum adds all values, returning (result, false) if any partial sum overflows.
func Sum(values ...uint64) (uint64, bool) {
	var total uint64
	for _, v := range values {
		var ok bool
		if total, ok = AddUint64(total, v); !ok {
			return 0, false
		}
	}
	return total, true
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}
