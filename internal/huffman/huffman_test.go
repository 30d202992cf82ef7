package huffman

import (
	"bytes"
	"testing"

	"github.com/z7codec/z7/internal/bitio"
)

// Spec §8 scenario 5: frequencies {A:3,B:2,C:1,D:1} yield lengths
// {A:1,B:2,C:3,D:3} (or an equivalent canonical assignment with the same
// length multiset), satisfying Kraft equality.
func TestBuildKraftEquality(t *testing.T) {
	const A, B, C, D = 0, 1, 2, 3
	freqs := []int{A: 3, B: 2, C: 1, D: 1}
	codes, _, err := Build(freqs, 15)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	lengths := map[int]int{}
	for s, c := range codes {
		lengths[s] = int(c.Length)
	}
	wantMultiset := map[int]int{1: 1, 2: 1, 3: 2} // one length-1, one length-2, two length-3
	gotMultiset := map[int]int{}
	for _, l := range lengths {
		gotMultiset[l]++
	}
	for l, n := range wantMultiset {
		if gotMultiset[l] != n {
			t.Fatalf("length multiset = %v, want %v", gotMultiset, wantMultiset)
		}
	}

	kraft := 0.0
	for _, l := range lengths {
		kraft += 1.0 / float64(int(1)<<uint(l))
	}
	if kraft != 1.0 {
		t.Fatalf("Kraft sum = %v, want exactly 1 (equality case)", kraft)
	}
}

func TestKraftInequalityHolds(t *testing.T) {
	freqs := []int{10, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	codes, _, err := Build(freqs, 15)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	kraft := 0.0
	maxLen := 0
	for _, c := range codes {
		kraft += 1.0 / float64(int(1)<<uint(c.Length))
		if int(c.Length) > maxLen {
			maxLen = int(c.Length)
		}
	}
	if kraft > 1.0+1e-9 {
		t.Fatalf("Kraft sum = %v, want <= 1", kraft)
	}
	if maxLen > 15 {
		t.Fatalf("max code length = %d, want <= 15", maxLen)
	}
}

// A skewed distribution that would naturally produce codes longer than a
// small maxLen must still respect the cap after length limiting.
func TestLengthLimiting(t *testing.T) {
	freqs := make([]int, 32)
	f := 1
	for i := range freqs {
		freqs[i] = f
		f *= 2 // doubling skew forces a deep unbounded tree
	}
	const maxLen = 7
	codes, _, err := Build(freqs, maxLen)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(codes) != len(freqs) {
		t.Fatalf("got %d codes, want %d", len(codes), len(freqs))
	}
	kraft := 0.0
	for _, c := range codes {
		if int(c.Length) > maxLen {
			t.Fatalf("code length %d exceeds maxLen %d", c.Length, maxLen)
		}
		kraft += 1.0 / float64(int(1)<<uint(c.Length))
	}
	if kraft > 1.0+1e-9 {
		t.Fatalf("Kraft sum = %v, want <= 1", kraft)
	}
}

// Two independent calls given the same (symbol -> length) map must produce
// identical (symbol -> value) assignments: the canonical property.
func TestCanonicalPropertyIsReproducible(t *testing.T) {
	lengths := map[int]int{0: 2, 1: 2, 2: 2, 3: 3, 4: 3}
	a := assignCanonicalCodes(lengths, 15)
	b := LengthsToCodes(lengths, 15)
	if len(a) != len(b) {
		t.Fatalf("length mismatch")
	}
	for s, ca := range a {
		cb, ok := b[s]
		if !ok || ca != cb {
			t.Fatalf("symbol %d: a=%v b=%v", s, ca, cb)
		}
	}
}

func TestEmptyInputYieldsUsableTree(t *testing.T) {
	codes, tree, err := Build(nil, 15)
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	if len(codes) < 1 {
		t.Fatalf("expected at least one encodable symbol from empty input")
	}
	if tree.Root == noChild {
		t.Fatalf("expected a non-empty tree")
	}
}

// Round-trip Build -> NewDecoder -> Decode through the bit stream.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	freqs := []int{5, 3, 3, 2, 2, 1, 1, 1}
	codes, _, err := Build(freqs, 15)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	bw := bitio.NewBitWriter(&buf)
	seq := []int{0, 1, 2, 0, 3, 7, 4, 5, 6, 0, 0, 2}
	for _, s := range seq {
		c := codes[s]
		if err := bw.PutHuffman(c.Value, uint(c.Length)); err != nil {
			t.Fatalf("PutHuffman: %v", err)
		}
	}
	if err := bw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	lengths := make([]int, len(freqs))
	for s, c := range codes {
		lengths[s] = int(c.Length)
	}
	dec, err := NewDecoder(lengths)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	br := bitio.NewBitReader(&buf)
	for i, want := range seq {
		got, err := dec.Decode(br)
		if err != nil {
			t.Fatalf("Decode[%d]: %v", i, err)
		}
		if got != want {
			t.Fatalf("Decode[%d] = %d, want %d", i, got, want)
		}
	}
}
