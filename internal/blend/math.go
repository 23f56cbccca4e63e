package blend

// div255 divides x by 255 exactly without using division.
//
// Formula: ((x + 1) + ((x + 1) >> 8)) >> 8
//
// This is Alvy Ray Smith's formula and is exact for every product of two
// bytes, which keeps coverage masks stable across repeated renders.
func div255(x uint16) uint16 {
	t := x + 1
	return (t + (t >> 8)) >> 8
}

// MulDiv255 returns a×b/255 rounded down.
func MulDiv255(a, b byte) byte {
	return byte(div255(uint16(a) * uint16(b)))
}

// Remaining returns the coverage still available after used: 255 − used.
func Remaining(used byte) byte {
	return 255 - used
}

// MinCoverage returns the smaller of two coverage values.
func MinCoverage(a, b byte) byte {
	if a < b {
		return a
	}
	return b
}

// AddClamp adds two coverage values and clamps to 255.
func AddClamp(a, b byte) byte {
	sum := uint16(a) + uint16(b)
	if sum > 255 {
		return 255
	}
	return byte(sum)
}
