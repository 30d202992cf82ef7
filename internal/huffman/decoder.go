package huffman

import (
	"errors"
	"math/bits"

	"github.com/z7codec/z7/internal/bitio"
)

// ErrInvalidCode is returned when a decoded bit sequence does not match
// any code in the table.
var ErrInvalidCode = errors.New("huffman: invalid code")

// The decoding table shape below — a fixed-width lookup keyed by the next
// chunkBits bits, with an overflow link table for longer codes — is
// adapted directly from the table the teacher's sgzip/internal/flate
// huffmanDecoder builds (itself zlib's algorithm; see zlib's
// doc/algorithm.txt). chunk&15 is the code length, chunk>>4 is either the
// decoded symbol or, for entries needing overflow, an index into links.
const (
	chunkBits  = 9
	numChunks  = 1 << chunkBits
	countMask  = 15
	valueShift = 4
)

// Decoder is a table-driven canonical Huffman decoder built from a set of
// (symbol, code_length) pairs.
type Decoder struct {
	min      int
	chunks   [numChunks]uint32
	links    [][]uint32
	linkMask uint32
}

// NewDecoder builds a Decoder from symbol -> code_length, for symbols
// 0..len(lengths)-1. A zero entry means "symbol unused". Mirrors
// huffmanDecoder.init in the teacher's inflate.go.
func NewDecoder(lengths []int) (*Decoder, error) {
	d := &Decoder{}
	ok := d.init(lengths)
	if !ok {
		return nil, errors.New("huffman: incomplete or over-subscribed code")
	}
	return d, nil
}

func (d *Decoder) init(lengths []int) bool {
	const maxCodeLen = 16

	var count [maxCodeLen]int
	var min, max int
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if min == 0 || n < min {
			min = n
		}
		if n > max {
			max = n
		}
		if n >= maxCodeLen {
			return false
		}
		count[n]++
	}

	if max == 0 {
		// Empty tree: valid to construct, but any decode against it fails.
		return true
	}

	code := 0
	var nextcode [maxCodeLen]int
	for i := min; i <= max; i++ {
		code <<= 1
		nextcode[i] = code
		code += count[i]
	}

	// Completeness check: degenerate single-code alphabets are allowed,
	// matching the teacher's zlib-compatibility exception.
	if code != 1<<uint(max) && !(code == 1 && max == 1) {
		return false
	}

	d.min = min
	if max > chunkBits {
		numLinks := 1 << (uint(max) - chunkBits)
		d.linkMask = uint32(numLinks - 1)

		link := nextcode[chunkBits+1] >> 1
		d.links = make([][]uint32, numChunks-link)
		for j := uint(link); j < numChunks; j++ {
			reverse := int(bits.Reverse16(uint16(j)))
			reverse >>= uint(16 - chunkBits)
			off := j - uint(link)
			d.chunks[reverse] = uint32(off<<valueShift | (chunkBits + 1))
			d.links[off] = make([]uint32, numLinks)
		}
	}

	for i, n := range lengths {
		if n == 0 {
			continue
		}
		c := nextcode[n]
		nextcode[n]++
		chunk := uint32(i<<valueShift | n)
		reverse := int(bits.Reverse16(uint16(c)))
		reverse >>= uint(16 - n)
		if n <= chunkBits {
			for off := reverse; off < len(d.chunks); off += 1 << uint(n) {
				d.chunks[off] = chunk
			}
		} else {
			j := reverse & (numChunks - 1)
			value := d.chunks[j] >> valueShift
			linktab := d.links[value]
			reverse >>= chunkBits
			for off := reverse; off < len(linktab); off += 1 << uint(n-chunkBits) {
				linktab[off] = chunk
			}
		}
	}

	return true
}

// Decode consumes a single symbol from br using the table built by
// NewDecoder. It reads bits LSB-first (this table's reversed-index layout
// is what lets it do so despite Huffman codes being conceptually MSB-first
// on the wire — the same trick the teacher's huffSym relies on).
func (d *Decoder) Decode(br *bitio.BitReader) (int, error) {
	n := uint(d.min)
	if n == 0 {
		return 0, ErrInvalidCode
	}
	for {
		b, err := br.PeekBits(n)
		if err != nil {
			return 0, err
		}
		chunk := d.chunks[b&(numChunks-1)]
		cl := chunk & countMask
		if cl > chunkBits {
			chunk = d.links[chunk>>valueShift][(b>>chunkBits)&d.linkMask]
			cl = chunk & countMask
		}
		if cl == 0 {
			return 0, ErrInvalidCode
		}
		if uint(cl) > n {
			n = uint(cl)
			continue
		}
		if _, err := br.GetBits(uint(cl)); err != nil {
			return 0, err
		}
		return int(chunk >> valueShift), nil
	}
}
