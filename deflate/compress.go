package deflate

import (
	"io"

	"github.com/z7codec/z7/internal/bitio"
	"github.com/z7codec/z7/internal/huffman"
	"github.com/z7codec/z7/internal/lz77"
)

const (
	// tokenBlockTarget and inputBlockTarget close a block once either
	// threshold is crossed, per §4.5 "Block segmentation".
	tokenBlockTarget = 16 * 1024
	inputBlockTarget = 64 * 1024

	maxStoredBlockLen = 65535
)

// Compress reads all of src, encodes it as a DEFLATE stream under the given
// match-finder mode, and writes the result to dst.
func Compress(dst io.Writer, src io.Reader, mode lz77.Mode) error {
	return CompressDict(dst, src, mode, nil)
}

// CompressDict is Compress with a preset dictionary: dict is prior context
// the match finder may reference but never itself emits as output. This is
// RFC 1951's own dictionary-priming mechanism (the one compress/flate
// exposes via NewWriterDict), not a zlib/gzip container feature — the
// compressed stream carries no indication a dictionary was used, so a
// decompressor must be given the identical dict via DecompressDict.
func CompressDict(dst io.Writer, src io.Reader, mode lz77.Mode, dict []byte) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	bw := bitio.NewBitWriter(dst)

	if mode == lz77.NoCompression {
		if err := compressStoredOnly(bw, data); err != nil {
			return err
		}
		return bw.Flush()
	}

	ts := lz77.NewTokenStreamWithDict(data, mode, dict)
	offset := 0
	for {
		tokens, covered, final := collectBlock(ts)
		if err := emitBlock(bw, data[offset:offset+covered], tokens, mode, final); err != nil {
			return err
		}
		offset += covered
		if final {
			break
		}
	}
	return bw.Flush()
}

// compressStoredOnly emits the entire input as a sequence of stored blocks,
// splitting on maxStoredBlockLen, per §4.5: "For NO_COMPRESSION, always
// stored."
func compressStoredOnly(bw *bitio.BitWriter, data []byte) error {
	if len(data) == 0 {
		return emitStoredBlock(bw, nil, true)
	}
	for offset := 0; offset < len(data); {
		end := offset + maxStoredBlockLen
		if end > len(data) {
			end = len(data)
		}
		final := end == len(data)
		if err := emitStoredBlock(bw, data[offset:end], final); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

// collectBlock pulls tokens from ts until the block-size target is hit or
// the stream ends, returning the tokens, the number of input bytes they
// cover, and whether the stream is now exhausted (this is therefore the
// final block).
func collectBlock(ts *lz77.TokenStream) (tokens []lz77.Token, covered int, final bool) {
	for {
		tok := ts.Next()
		if tok.Kind == lz77.EndOfBlockToken {
			return tokens, covered, true
		}
		tokens = append(tokens, tok)
		if tok.Kind == lz77.LiteralToken {
			covered++
		} else {
			covered += tok.Length
		}
		if len(tokens) >= tokenBlockTarget || covered >= inputBlockTarget {
			return tokens, covered, false
		}
	}
}

// emitBlock picks the cheapest of stored/fixed/dynamic encodings for this
// span and writes it, per §4.5 "Block type selection".
func emitBlock(bw *bitio.BitWriter, raw []byte, tokens []lz77.Token, mode lz77.Mode, final bool) error {
	storedBits := storedBitCost(len(raw))
	fixedBitsCost := fixedBlockBitCost(tokens)

	if mode == lz77.BestSpeed {
		if fixedBitsCost <= storedBits {
			return emitFixedBlock(bw, tokens, final)
		}
		return emitStoredBlockTokens(bw, raw, final)
	}

	plan := buildDynamicPlan(tokens)
	dynamicBitsCost := plan.totalBits

	switch {
	case storedBits <= fixedBitsCost && storedBits <= dynamicBitsCost:
		return emitStoredBlockTokens(bw, raw, final)
	case fixedBitsCost <= dynamicBitsCost:
		return emitFixedBlock(bw, tokens, final)
	default:
		return emitDynamicBlock(bw, plan, tokens, final)
	}
}

// storedBitCost estimates a stored block's size in bits: a 3-bit header
// (rounded up to the next byte), 4 bytes of LEN/NLEN, and the raw payload.
func storedBitCost(n int) int {
	return 8 + 32 + n*8
}

func fixedBlockBitCost(tokens []lz77.Token) int {
	litLen := fixedLitLengths()
	distLen := fixedDistLengths()
	bits := 3
	for _, tok := range tokens {
		bits += tokenBits(tok, litLen, distLen)
	}
	bits += litLen[endOfBlock]
	return bits
}

func tokenBits(tok lz77.Token, litLen, distLen []int) int {
	if tok.Kind == lz77.LiteralToken {
		return litLen[tok.Literal]
	}
	code, _, extraBits := lz77.LengthCode(tok.Length)
	dcode, _, dExtraBits := lz77.DistanceCode(tok.Distance)
	return litLen[code] + extraBits + distLen[dcode] + dExtraBits
}

func emitStoredBlockTokens(bw *bitio.BitWriter, raw []byte, final bool) error {
	if len(raw) <= maxStoredBlockLen {
		return emitStoredBlock(bw, raw, final)
	}
	for offset := 0; offset < len(raw); {
		end := offset + maxStoredBlockLen
		if end > len(raw) {
			end = len(raw)
		}
		last := end == len(raw) && final
		if err := emitStoredBlock(bw, raw[offset:end], last); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

func emitStoredBlock(bw *bitio.BitWriter, raw []byte, final bool) error {
	var finalBit uint32
	if final {
		finalBit = 1
	}
	if err := bw.PutBits(finalBit, 1); err != nil {
		return err
	}
	if err := bw.PutBits(0, 2); err != nil { // BTYPE=00
		return err
	}
	if err := bw.AlignToByte(); err != nil {
		return err
	}
	n := uint16(len(raw))
	header := []byte{byte(n), byte(n >> 8), byte(^n), byte(^n >> 8)}
	if err := bw.WriteAligned(header); err != nil {
		return err
	}
	return bw.WriteAligned(raw)
}

func emitFixedBlock(bw *bitio.BitWriter, tokens []lz77.Token, final bool) error {
	var finalBit uint32
	if final {
		finalBit = 1
	}
	if err := bw.PutBits(finalBit, 1); err != nil {
		return err
	}
	if err := bw.PutBits(1, 2); err != nil { // BTYPE=01
		return err
	}
	litCodes := huffman.LengthsToCodes(lengthsToMap(fixedLitLengths()), maxLitCodeLen)
	distCodes := huffman.LengthsToCodes(lengthsToMap(fixedDistLengths()), maxDistCodeLen)
	if err := writeTokens(bw, tokens, litCodes, distCodes); err != nil {
		return err
	}
	return writeSymbol(bw, litCodes, endOfBlock)
}

func lengthsToMap(lengths []int) map[int]int {
	m := make(map[int]int, len(lengths))
	for s, l := range lengths {
		if l > 0 {
			m[s] = l
		}
	}
	return m
}

// dynamicPlan is the fully-built dynamic-block encoding for one span of
// tokens: both code tables and the code-length run-length program, built
// once and shared between cost estimation and emission.
type dynamicPlan struct {
	litCodes, distCodes map[int]huffman.Code
	clCodes             map[int]huffman.Code
	clSymbols           []clSymbol
	nlit, ndist, nclen  int
	totalBits           int
}

type clSymbol struct {
	sym       int
	extra     int
	extraBits int
}

func buildDynamicPlan(tokens []lz77.Token) *dynamicPlan {
	litFreq := make([]int, numLitCodes)
	distFreq := make([]int, numDistCodes)
	for _, tok := range tokens {
		if tok.Kind == lz77.LiteralToken {
			litFreq[tok.Literal]++
			continue
		}
		code, _, _ := lz77.LengthCode(tok.Length)
		litFreq[code]++
		dcode, _, _ := lz77.DistanceCode(tok.Distance)
		distFreq[dcode]++
	}
	litFreq[endOfBlock]++

	litCodes, _, err := huffman.Build(litFreq, maxLitCodeLen)
	if err != nil {
		panic("deflate: literal/length alphabet exceeds max code length: " + err.Error())
	}
	distCodes, _, err := huffman.Build(distFreq, maxDistCodeLen)
	if err != nil {
		panic("deflate: distance alphabet exceeds max code length: " + err.Error())
	}

	nlit := maxSymbolPlusOne(litCodes, endOfBlock+1)
	ndist := maxSymbolPlusOne(distCodes, 1)

	litLengths := codesToLengths(litCodes, nlit)
	distLengths := codesToLengths(distCodes, ndist)
	seq := append(append([]int{}, litLengths...), distLengths...)
	clSymbols := runLengthEncode(seq)

	clFreq := make([]int, numCLCodes)
	for _, cl := range clSymbols {
		clFreq[cl.sym]++
	}
	clCodes, _, err := huffman.Build(clFreq, maxCLCodeLen)
	if err != nil {
		panic("deflate: code-length alphabet exceeds max code length: " + err.Error())
	}
	clLengthsBySym := make([]int, numCLCodes)
	for s, c := range clCodes {
		clLengthsBySym[s] = int(c.Length)
	}
	nclen := 4
	for p := numCLCodes - 1; p >= 0; p-- {
		if clLengthsBySym[codeLengthOrder[p]] != 0 {
			nclen = p + 1
			break
		}
	}
	if nclen < 4 {
		nclen = 4
	}

	headerBits := 5 + 5 + 4 + nclen*3
	for _, cl := range clSymbols {
		headerBits += clLengthsBySym[cl.sym] + cl.extraBits
	}

	total := 3 + headerBits
	for _, tok := range tokens {
		if tok.Kind == lz77.LiteralToken {
			total += int(litCodes[int(tok.Literal)].Length)
			continue
		}
		code, _, extraBits := lz77.LengthCode(tok.Length)
		dcode, _, dExtraBits := lz77.DistanceCode(tok.Distance)
		total += int(litCodes[code].Length) + extraBits
		total += int(distCodes[dcode].Length) + dExtraBits
	}
	total += int(litCodes[endOfBlock].Length)

	return &dynamicPlan{
		litCodes: litCodes, distCodes: distCodes,
		clCodes: clCodes, clSymbols: clSymbols,
		nlit: nlit, ndist: ndist, nclen: nclen,
		totalBits: total,
	}
}

func maxSymbolPlusOne(codes map[int]huffman.Code, floor int) int {
	max := floor - 1
	for s := range codes {
		if s > max {
			max = s
		}
	}
	return max + 1
}

func codesToLengths(codes map[int]huffman.Code, n int) []int {
	lengths := make([]int, n)
	for s, c := range codes {
		if s < n {
			lengths[s] = int(c.Length)
		}
	}
	return lengths
}

// runLengthEncode implements §4.5 step 2: the combined literal/length and
// distance code-length sequence is packed using symbols 16 (repeat last
// length 3-6 times), 17 (repeat zero 3-10 times), and 18 (repeat zero
// 11-138 times), choosing the longest applicable run at each position.
func runLengthEncode(seq []int) []clSymbol {
	var out []clSymbol
	for i := 0; i < len(seq); {
		v := seq[i]
		j := i + 1
		for j < len(seq) && seq[j] == v {
			j++
		}
		runLen := j - i

		if v == 0 {
			for k := 0; k < runLen; {
				remaining := runLen - k
				switch {
				case remaining >= 11:
					take := remaining
					if take > 138 {
						take = 138
					}
					out = append(out, clSymbol{18, take - 11, 7})
					k += take
				case remaining >= 3:
					take := remaining
					if take > 10 {
						take = 10
					}
					out = append(out, clSymbol{17, take - 3, 3})
					k += take
				default:
					out = append(out, clSymbol{0, 0, 0})
					k++
				}
			}
		} else {
			out = append(out, clSymbol{v, 0, 0})
			for k := 1; k < runLen; {
				remaining := runLen - k
				if remaining >= 3 {
					take := remaining
					if take > 6 {
						take = 6
					}
					out = append(out, clSymbol{16, take - 3, 2})
					k += take
				} else {
					out = append(out, clSymbol{v, 0, 0})
					k++
				}
			}
		}
		i = j
	}
	return out
}

func emitDynamicBlock(bw *bitio.BitWriter, plan *dynamicPlan, tokens []lz77.Token, final bool) error {
	var finalBit uint32
	if final {
		finalBit = 1
	}
	if err := bw.PutBits(finalBit, 1); err != nil {
		return err
	}
	if err := bw.PutBits(2, 2); err != nil { // BTYPE=10
		return err
	}
	if err := bw.PutBits(uint32(plan.nlit-257), 5); err != nil {
		return err
	}
	if err := bw.PutBits(uint32(plan.ndist-1), 5); err != nil {
		return err
	}
	if err := bw.PutBits(uint32(plan.nclen-4), 4); err != nil {
		return err
	}

	clLengthsBySym := make([]int, numCLCodes)
	for s, c := range plan.clCodes {
		clLengthsBySym[s] = int(c.Length)
	}
	for p := 0; p < plan.nclen; p++ {
		if err := bw.PutBits(uint32(clLengthsBySym[codeLengthOrder[p]]), 3); err != nil {
			return err
		}
	}

	for _, cl := range plan.clSymbols {
		if err := writeSymbol(bw, plan.clCodes, cl.sym); err != nil {
			return err
		}
		if cl.extraBits > 0 {
			if err := bw.PutBits(uint32(cl.extra), uint(cl.extraBits)); err != nil {
				return err
			}
		}
	}

	if err := writeTokens(bw, tokens, plan.litCodes, plan.distCodes); err != nil {
		return err
	}
	return writeSymbol(bw, plan.litCodes, endOfBlock)
}

func writeTokens(bw *bitio.BitWriter, tokens []lz77.Token, litCodes, distCodes map[int]huffman.Code) error {
	for _, tok := range tokens {
		if tok.Kind == lz77.LiteralToken {
			if err := writeSymbol(bw, litCodes, int(tok.Literal)); err != nil {
				return err
			}
			continue
		}
		code, extra, extraBits := lz77.LengthCode(tok.Length)
		if err := writeSymbol(bw, litCodes, code); err != nil {
			return err
		}
		if extraBits > 0 {
			if err := bw.PutBits(uint32(extra), uint(extraBits)); err != nil {
				return err
			}
		}
		dcode, dExtra, dExtraBits := lz77.DistanceCode(tok.Distance)
		if err := writeSymbol(bw, distCodes, dcode); err != nil {
			return err
		}
		if dExtraBits > 0 {
			if err := bw.PutBits(uint32(dExtra), uint(dExtraBits)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSymbol(bw *bitio.BitWriter, codes map[int]huffman.Code, sym int) error {
	c := codes[sym]
	return bw.PutHuffman(c.Value, uint(c.Length))
}
