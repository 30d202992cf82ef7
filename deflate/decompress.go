package deflate

import (
	"io"
	"sync"

	"github.com/z7codec/z7/internal/bitio"
	"github.com/z7codec/z7/internal/huffman"
	"github.com/z7codec/z7/internal/lz77"
	"github.com/z7codec/z7/internal/ringbuffer"
)

// The decoder loop below is adapted from the teacher's
// sgzip/internal/flate/inflate.go Decompressor: nextBlock/dataBlock/
// huffmanBlock/readHuffman. The teacher threads Checkpoint/woffset/span
// state through every step so that gsip can resume decoding mid-stream;
// none of that survives here; since random-access decompression is out of
// scope, decoding always runs start-to-finish over one BitReader and one
// window, copy matches straight into dst as they're decoded.
var (
	fixedLitOnce  sync.Once
	fixedLitDec   *huffman.Decoder
	fixedDistOnce sync.Once
	fixedDistDec  *huffman.Decoder
)

func getFixedLitDecoder() *huffman.Decoder {
	fixedLitOnce.Do(func() {
		d, err := huffman.NewDecoder(fixedLitLengths())
		if err != nil {
			panic("deflate: fixed literal/length table is malformed: " + err.Error())
		}
		fixedLitDec = d
	})
	return fixedLitDec
}

func getFixedDistDecoder() *huffman.Decoder {
	fixedDistOnce.Do(func() {
		d, err := huffman.NewDecoder(fixedDistLengths())
		if err != nil {
			panic("deflate: fixed distance table is malformed: " + err.Error())
		}
		fixedDistDec = d
	})
	return fixedDistDec
}

// Decompress reads a raw DEFLATE stream from src and writes the
// decompressed bytes to dst, per RFC 1951.
func Decompress(dst io.Writer, src io.Reader) error {
	return DecompressDict(dst, src, nil)
}

// DecompressDict is Decompress with a preset dictionary: dict must be
// exactly the bytes the stream was compressed with (see CompressDict). It
// primes the output window so that back-references into the dictionary
// resolve correctly, mirroring compress/flate's NewReaderDict.
func DecompressDict(dst io.Writer, src io.Reader, dict []byte) error {
	br := bitio.NewBitReader(src)
	window := ringbuffer.New[byte](lz77.WindowSize)
	if len(dict) > 0 {
		window.PushSlice(dict)
	}

	for {
		final, err := br.GetBits(1)
		if err != nil {
			return err
		}
		btype, err := br.GetBits(2)
		if err != nil {
			return err
		}

		switch btype {
		case 0:
			if err := decodeStoredBlock(br, dst, window); err != nil {
				return err
			}
		case 1:
			if err := decodeHuffmanBlock(br, dst, window, getFixedLitDecoder(), getFixedDistDecoder()); err != nil {
				return err
			}
		case 2:
			litDec, distDec, err := readDynamicTables(br)
			if err != nil {
				return err
			}
			if err := decodeHuffmanBlock(br, dst, window, litDec, distDec); err != nil {
				return err
			}
		default:
			return ErrInvalidBlockType
		}

		if final == 1 {
			return nil
		}
	}
}

func decodeStoredBlock(br *bitio.BitReader, dst io.Writer, window *ringbuffer.RingBuffer[byte]) error {
	var lenBuf [4]byte
	if err := br.ReadAligned(lenBuf[:]); err != nil {
		return err
	}
	n := int(lenBuf[0]) | int(lenBuf[1])<<8
	nn := int(lenBuf[2]) | int(lenBuf[3])<<8
	if uint16(nn) != uint16(^uint16(n)) {
		return ErrStoredLengthMismatch
	}
	if n == 0 {
		return nil
	}

	buf := make([]byte, n)
	if err := br.ReadAligned(buf); err != nil {
		return err
	}
	if _, err := dst.Write(buf); err != nil {
		return err
	}
	window.PushSlice(buf)
	return nil
}

func decodeHuffmanBlock(br *bitio.BitReader, dst io.Writer, window *ringbuffer.RingBuffer[byte], litDec, distDec *huffman.Decoder) error {
	singleByte := make([]byte, 1)
	for {
		sym, err := litDec.Decode(br)
		if err != nil {
			return err
		}
		switch {
		case sym < endOfBlock:
			singleByte[0] = byte(sym)
			if _, err := dst.Write(singleByte); err != nil {
				return err
			}
			window.Push(singleByte[0])
		case sym == endOfBlock:
			return nil
		case sym-257 >= len(lz77.LengthTable):
			return huffman.ErrInvalidCode
		default:
			entry := lz77.LengthTable[sym-257]
			extra, err := br.GetBits(uint(entry.ExtraBits))
			if err != nil {
				return err
			}
			length := entry.Base + int(extra)

			distSym, err := distDec.Decode(br)
			if err != nil {
				return err
			}
			if distSym >= len(lz77.DistanceTable) {
				return ErrInvalidDistance
			}
			dentry := lz77.DistanceTable[distSym]
			dextra, err := br.GetBits(uint(dentry.ExtraBits))
			if err != nil {
				return err
			}
			distance := dentry.Base + int(dextra)

			if distance < 1 || distance > window.Len() {
				return ErrInvalidDistance
			}
			for i := 0; i < length; i++ {
				b, err := window.ReadOffsetEnd(distance-1, 1)
				if err != nil {
					return ErrInvalidDistance
				}
				if _, err := dst.Write(b); err != nil {
					return err
				}
				window.Push(b[0])
			}
		}
	}
}

func readDynamicTables(br *bitio.BitReader) (litDec, distDec *huffman.Decoder, err error) {
	hlit, err := br.GetBits(5)
	if err != nil {
		return nil, nil, err
	}
	nlit := int(hlit) + 257
	hdist, err := br.GetBits(5)
	if err != nil {
		return nil, nil, err
	}
	ndist := int(hdist) + 1
	hclen, err := br.GetBits(4)
	if err != nil {
		return nil, nil, err
	}
	nclen := int(hclen) + 4
	if nlit > numLitCodes || ndist > numDistCodes {
		return nil, nil, huffman.ErrInvalidCode
	}

	var clLengths [numCLCodes]int
	for i := 0; i < nclen; i++ {
		v, err := br.GetBits(3)
		if err != nil {
			return nil, nil, err
		}
		clLengths[codeLengthOrder[i]] = int(v)
	}
	clDec, err := huffman.NewDecoder(clLengths[:])
	if err != nil {
		return nil, nil, err
	}

	sequence := make([]int, nlit+ndist)
	for i := 0; i < len(sequence); {
		sym, err := clDec.Decode(br)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case sym < 16:
			sequence[i] = sym
			i++
		case sym == 16:
			if i == 0 {
				return nil, nil, ErrInvalidCodeLengthRun
			}
			extra, err := br.GetBits(2)
			if err != nil {
				return nil, nil, err
			}
			rep := 3 + int(extra)
			if i+rep > len(sequence) {
				return nil, nil, ErrInvalidCodeLengthRun
			}
			prev := sequence[i-1]
			for j := 0; j < rep; j++ {
				sequence[i] = prev
				i++
			}
		case sym == 17:
			extra, err := br.GetBits(3)
			if err != nil {
				return nil, nil, err
			}
			rep := 3 + int(extra)
			if i+rep > len(sequence) {
				return nil, nil, ErrInvalidCodeLengthRun
			}
			for j := 0; j < rep; j++ {
				sequence[i] = 0
				i++
			}
		case sym == 18:
			extra, err := br.GetBits(7)
			if err != nil {
				return nil, nil, err
			}
			rep := 11 + int(extra)
			if i+rep > len(sequence) {
				return nil, nil, ErrInvalidCodeLengthRun
			}
			for j := 0; j < rep; j++ {
				sequence[i] = 0
				i++
			}
		default:
			return nil, nil, huffman.ErrInvalidCode
		}
	}

	litDec, err = huffman.NewDecoder(sequence[:nlit])
	if err != nil {
		return nil, nil, err
	}
	distDec, err = huffman.NewDecoder(sequence[nlit : nlit+ndist])
	if err != nil {
		return nil, nil, err
	}
	return litDec, distDec, nil
}
