// Package deflate implements the RFC 1951 DEFLATE compressed data format:
// block framing, Huffman coding of the literal/length and distance
// alphabets, and the LZ77 back-reference scheme, built on
// internal/bitio, internal/huffman, internal/lz77, and internal/ringbuffer.
package deflate

const (
	endOfBlock = 256

	numLitCodes  = 286
	numDistCodes = 30
	numCLCodes   = 19

	// fixedLitTableSize and fixedDistTableSize are the sizes of the fixed
	// Huffman code-length tables, as opposed to numLitCodes/numDistCodes
	// (the alphabet sizes actually usable by a token). RFC 1951 §3.2.6's
	// fixed tables assign lengths to a few codes that are never legally
	// produced (286/287 for literals, 30/31 for distances) purely so the
	// table satisfies the Kraft equality the decoder's completeness check
	// requires; see the teacher's fixedHuffmanDecoderInit, which likewise
	// builds a 288-entry literal table.
	fixedLitTableSize  = 288
	fixedDistTableSize = 32

	maxLitCodeLen  = 15
	maxDistCodeLen = 15
	maxCLCodeLen   = 7
)

// codeLengthOrder is RFC 1951 §3.2.7's permutation in which the 19
// code-length-alphabet lengths are transmitted, grounded on the same
// codeOrder table in the teacher's inflate.go.
var codeLengthOrder = [numCLCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// fixedLitLengths is RFC 1951 §3.2.6's fixed literal/length code lengths,
// the same table the teacher's fixedHuffmanDecoderInit builds at runtime.
func fixedLitLengths() []int {
	lengths := make([]int, fixedLitTableSize)
	for i := 0; i < 144; i++ {
		lengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		lengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		lengths[i] = 7
	}
	for i := 280; i < fixedLitTableSize; i++ {
		lengths[i] = 8
	}
	return lengths
}

// fixedDistLengths is RFC 1951 §3.2.6's fixed distance code lengths: every
// code gets a flat 5 bits. The table covers all 32 values 5 bits can
// address, not just the 30 live distance codes, for the same Kraft-
// completeness reason fixedLitLengths covers 288 entries.
func fixedDistLengths() []int {
	lengths := make([]int, fixedDistTableSize)
	for i := range lengths {
		lengths[i] = 5
	}
	return lengths
}
