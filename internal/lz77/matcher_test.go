package lz77

import "testing"

// reassemble replays a TokenStream back into the original bytes, the
// decompressor's job done in miniature, to check tokenization is lossless.
func reassemble(ts *TokenStream) []byte {
	var out []byte
	for {
		tok := ts.Next()
		switch tok.Kind {
		case EndOfBlockToken:
			return out
		case LiteralToken:
			out = append(out, tok.Literal)
		case MatchToken:
			start := len(out) - tok.Distance
			for i := 0; i < tok.Length; i++ {
				out = append(out, out[start+i])
			}
		}
	}
}

// reassembleWithDict is reassemble, but seeded with dict so that matches
// referencing back into it resolve correctly; the dict prefix is stripped
// from the returned bytes, since it was never part of the stream's output.
func reassembleWithDict(ts *TokenStream, dict []byte) []byte {
	out := append([]byte{}, dict...)
	for {
		tok := ts.Next()
		switch tok.Kind {
		case EndOfBlockToken:
			return out[len(dict):]
		case LiteralToken:
			out = append(out, tok.Literal)
		case MatchToken:
			start := len(out) - tok.Distance
			for i := 0; i < tok.Length; i++ {
				out = append(out, out[start+i])
			}
		}
	}
}

func TestDictRoundTrip(t *testing.T) {
	dict := []byte("the quick brown fox jumps over the lazy dog")
	data := []byte("the quick brown fox is not lazy at all")
	ts := NewTokenStreamWithDict(data, BestSize, dict)
	got := reassembleWithDict(ts, dict)
	if string(got) != string(data) {
		t.Fatalf("reassembled = %q, want %q", got, data)
	}
}

func TestDictEnablesMatchAcrossBoundary(t *testing.T) {
	dict := []byte("a sequence that repeats exactly once more right here")
	data := []byte("a sequence that repeats exactly once more right here and then some")
	ts := NewTokenStreamWithDict(data, BestSize, dict)

	sawCrossBoundaryMatch := false
	produced := 0
	for {
		tok := ts.Next()
		if tok.Kind == EndOfBlockToken {
			break
		}
		if tok.Kind == LiteralToken {
			produced++
			continue
		}
		if tok.Kind == MatchToken && tok.Distance > produced {
			sawCrossBoundaryMatch = true
		}
		produced += tok.Length
	}
	if !sawCrossBoundaryMatch {
		t.Fatalf("expected at least one match referencing the dictionary")
	}
}

func TestDictLongerThanWindowIsTrimmed(t *testing.T) {
	dict := make([]byte, MaxDistance+500)
	for i := range dict {
		dict[i] = byte(i)
	}
	data := []byte("trailing data after an oversized dictionary")
	ts := NewTokenStreamWithDict(data, BestSize, dict)
	got := reassembleWithDict(ts, dict[len(dict)-MaxDistance:])
	if string(got) != string(data) {
		t.Fatalf("reassembled = %q, want %q", got, data)
	}
}

func TestNoCompressionEmitsAllLiterals(t *testing.T) {
	data := []byte("Hello, World!\n")
	ts := NewTokenStream(data, NoCompression)
	for i := range data {
		tok := ts.Next()
		if tok.Kind != LiteralToken || tok.Literal != data[i] {
			t.Fatalf("token %d = %+v, want literal %q", i, tok, data[i])
		}
	}
	if tok := ts.Next(); tok.Kind != EndOfBlockToken {
		t.Fatalf("final token = %+v, want EndOfBlockToken", tok)
	}
}

func TestBestSpeedRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, the quick brown fox")
	ts := NewTokenStream(data, BestSpeed)
	got := reassemble(ts)
	if string(got) != string(data) {
		t.Fatalf("reassembled = %q, want %q", got, data)
	}
}

func TestBestSizeRoundTrip(t *testing.T) {
	data := []byte("abcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcxyzxyzxyzxyz")
	ts := NewTokenStream(data, BestSize)
	got := reassemble(ts)
	if string(got) != string(data) {
		t.Fatalf("reassembled = %q, want %q", got, data)
	}
}

// Spec §8 scenario: a single byte repeated 9001 times should compress under
// BestSize to well under its original size by way of one or a few long
// back-references, never a zero-distance "match".
func TestBestSizeLongRun(t *testing.T) {
	data := make([]byte, 9001)
	for i := range data {
		data[i] = 'A'
	}
	ts := NewTokenStream(data, BestSize)

	var tokens []Token
	for {
		tok := ts.Next()
		if tok.Kind == EndOfBlockToken {
			break
		}
		tokens = append(tokens, tok)
		if tok.Kind == MatchToken && tok.Distance == 0 {
			t.Fatalf("zero-distance match emitted: %+v", tok)
		}
	}
	if len(tokens) > 50 {
		t.Fatalf("got %d tokens for a 9001-byte run, want well under 50", len(tokens))
	}

	ts2 := NewTokenStream(data, BestSize)
	got := reassemble(ts2)
	if len(got) != len(data) || string(got) != string(data) {
		t.Fatalf("reassembled length = %d, want %d", len(got), len(data))
	}
}

func TestNoZeroDistanceOrOutOfBoundsMatches(t *testing.T) {
	data := make([]byte, 40000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	// Overwrite a long run midway through so real matches actually occur.
	for i := 20000; i < 20300; i++ {
		data[i] = 'Z'
	}

	for _, mode := range []Mode{BestSpeed, BestSize} {
		ts := NewTokenStream(data, mode)
		for {
			tok := ts.Next()
			if tok.Kind == EndOfBlockToken {
				break
			}
			if tok.Kind != MatchToken {
				continue
			}
			if tok.Distance < 1 || tok.Distance > MaxDistance {
				t.Fatalf("mode %v: match distance %d out of [1,%d]", mode, tok.Distance, MaxDistance)
			}
			if tok.Length < MinMatchLength || tok.Length > MaxMatchLength {
				t.Fatalf("mode %v: match length %d out of [%d,%d]", mode, tok.Length, MinMatchLength, MaxMatchLength)
			}
		}
	}
}

// A window-wrap scenario (spec §8 scenario): input longer than WindowSize
// must still round-trip, with all distances remaining within MaxDistance.
func TestWindowWrapRoundTrip(t *testing.T) {
	data := make([]byte, WindowSize+1000)
	for i := range data {
		data[i] = byte((i * 7) % 256)
	}
	copy(data[WindowSize-100:WindowSize-100+50], []byte("repeated-marker-sequence-xxxxxxx"))
	copy(data[WindowSize+500:WindowSize+500+50], []byte("repeated-marker-sequence-xxxxxxx"))

	ts := NewTokenStream(data, BestSize)
	got := reassemble(ts)
	if len(got) != len(data) {
		t.Fatalf("reassembled length = %d, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], data[i])
		}
	}
}

func TestEmptyInput(t *testing.T) {
	for _, mode := range []Mode{NoCompression, BestSpeed, BestSize} {
		ts := NewTokenStream(nil, mode)
		if tok := ts.Next(); tok.Kind != EndOfBlockToken {
			t.Fatalf("mode %v: first token on empty input = %+v, want EndOfBlockToken", mode, tok)
		}
	}
}
