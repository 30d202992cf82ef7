// Package lz77 implements the DEFLATE match finder: over a 32 KiB sliding
// window it locates the longest prior occurrence of the upcoming 3+ byte
// prefix and turns the input into a lazy sequence of literal/match/
// end-of-block tokens.
//
// The length/distance extra-bit tables below are grounded on
// adilg123-file-compression-decompression-tool's internal/compression/
// algorithms/flate lenAlphabets/distAlphabets Rulebook maps (same RFC 1951
// §3.2.5 tables, reshaped here as parallel arrays for fast lookup instead
// of a map).
package lz77

// LengthEntry describes one length code 257..285: the smallest match
// length it can represent (Base) and how many extra bits follow it.
type LengthEntry struct {
	Base      int
	ExtraBits int
}

// LengthTable is indexed by (code - 257).
var LengthTable = [29]LengthEntry{
	{3, 0}, {4, 0}, {5, 0}, {6, 0}, {7, 0}, {8, 0}, {9, 0}, {10, 0},
	{11, 1}, {13, 1}, {15, 1}, {17, 1},
	{19, 2}, {23, 2}, {27, 2}, {31, 2},
	{35, 3}, {43, 3}, {51, 3}, {59, 3},
	{67, 4}, {83, 4}, {99, 4}, {115, 4},
	{131, 5}, {163, 5}, {195, 5}, {227, 5},
	{258, 0},
}

// DistanceEntry describes one distance code 0..29.
type DistanceEntry struct {
	Base      int
	ExtraBits int
}

// DistanceTable is indexed directly by the distance code.
var DistanceTable = [30]DistanceEntry{
	{1, 0}, {2, 0}, {3, 0}, {4, 0},
	{5, 1}, {7, 1},
	{9, 2}, {13, 2},
	{17, 3}, {25, 3},
	{33, 4}, {49, 4},
	{65, 5}, {97, 5},
	{129, 6}, {193, 6},
	{257, 7}, {385, 7},
	{513, 8}, {769, 8},
	{1025, 9}, {1537, 9},
	{2049, 10}, {3073, 10},
	{4097, 11}, {6145, 11},
	{8193, 12}, {12289, 12},
	{16385, 13}, {24577, 13},
}

// LengthCode returns the literal/length alphabet code (257..285) and the
// extra-bit value for a match of the given length (3..258).
func LengthCode(length int) (code, extra, extraBits int) {
	if length == MaxMatchLength {
		return 257 + len(LengthTable) - 1, 0, 0
	}
	for i, e := range LengthTable {
		hi := e.Base + (1<<uint(e.ExtraBits) - 1)
		if length <= hi {
			return 257 + i, length - e.Base, e.ExtraBits
		}
	}
	last := len(LengthTable) - 1
	return 257 + last, length - LengthTable[last].Base, LengthTable[last].ExtraBits
}

// DistanceCode returns the distance alphabet code (0..29) and the
// extra-bit value for a match distance (1..32768).
func DistanceCode(distance int) (code, extra, extraBits int) {
	for i, e := range DistanceTable {
		hi := e.Base + (1<<uint(e.ExtraBits) - 1)
		if distance <= hi {
			return i, distance - e.Base, e.ExtraBits
		}
	}
	last := len(DistanceTable) - 1
	return last, distance - DistanceTable[last].Base, DistanceTable[last].ExtraBits
}

const (
	// MinMatchLength is the smallest match length DEFLATE can express
	// (RFC 1951 §3.2.5); the match finder never emits shorter matches.
	MinMatchLength = 3
	// MaxMatchLength is the largest match length a single token can cover.
	MaxMatchLength = 258
	// WindowSize is the DEFLATE sliding window: match distances are in [1, WindowSize].
	WindowSize = 1 << 15
	// MaxDistance is the largest representable match distance.
	MaxDistance = WindowSize
)
