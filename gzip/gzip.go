// Package gzip implements the RFC 1952 gzip container around a DEFLATE
// payload: header, optional sections, and the CRC-32/ISIZE trailer.
//
// The Header field shape is grounded on the teacher's
// sgzip/internal/flate.Header struct (the trailer is read into local
// CRC/size values, with no exported type); the framing logic
// itself (which the teacher leans on stdlib compress/gzip for, never
// implementing its own writer) is written fresh against RFC 1952 §2.3.
package gzip

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/z7codec/z7/crc32table"
	"github.com/z7codec/z7/deflate"
	"github.com/z7codec/z7/internal/lz77"
)

const (
	magic1  = 0x1F
	magic2  = 0x8B
	methodDeflate = 8

	flagText    = 1 << 0
	flagHCRC    = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4

	osUnknown = 0xFF
)

// Flags names the optional gzip header sections a writer can include.
type Flags struct {
	Text    bool
	HCRC    bool
	Extra   []byte
	Name    string
	Comment string
}

// Header is the parsed metadata of a gzip member.
type Header struct {
	Comment string
	Extra   []byte
	ModTime time.Time
	Name    string
	OS      byte
	Text    bool
}

var (
	ErrInvalidGzipHeader  = errors.New("gzip: invalid header")
	ErrUnsupportedMethod  = errors.New("gzip: unsupported compression method")
	ErrHeaderCrcMismatch  = errors.New("gzip: header CRC mismatch")
	ErrCrcMismatch        = errors.New("gzip: trailer CRC-32 mismatch")
	ErrSizeMismatch       = errors.New("gzip: trailer ISIZE mismatch")
)

// countingWriter wraps an io.Writer, accumulating a CRC-32 and byte count
// of everything written through it — used on the decompress side to derive
// the trailer-verification CRC/size from the decompressed bytes actually
// produced, without a second pass over dst.
type countingWriter struct {
	w    io.Writer
	crc  *crc32table.Digest
	size uint32
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.crc.Write(p)
	c.size += uint32(len(p))
	return c.w.Write(p)
}

// Compress writes a single gzip member wrapping the DEFLATE compression of
// src under mode, to dst.
func Compress(dst io.Writer, src io.Reader, mode lz77.Mode, flags Flags) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	var headerFlags byte
	if flags.Text {
		headerFlags |= flagText
	}
	if flags.HCRC {
		headerFlags |= flagHCRC
	}
	if len(flags.Extra) > 0 {
		headerFlags |= flagExtra
	}
	if flags.Name != "" {
		headerFlags |= flagName
	}
	if flags.Comment != "" {
		headerFlags |= flagComment
	}

	xflags := byte(0)
	switch mode {
	case lz77.BestSize:
		xflags = 2
	case lz77.BestSpeed:
		xflags = 4
	}

	var header []byte
	header = append(header, magic1, magic2, methodDeflate, headerFlags)
	header = binary.LittleEndian.AppendUint32(header, 0) // mtime: unset, per the caller owning timestamps
	header = append(header, xflags, osUnknown)

	if len(flags.Extra) > 0 {
		header = binary.LittleEndian.AppendUint16(header, uint16(len(flags.Extra)))
		header = append(header, flags.Extra...)
	}
	if flags.Name != "" {
		header = append(header, []byte(flags.Name)...)
		header = append(header, 0)
	}
	if flags.Comment != "" {
		header = append(header, []byte(flags.Comment)...)
		header = append(header, 0)
	}
	if flags.HCRC {
		// RFC 1952 §2.3: FHCRC covers every header byte up to but not
		// including the CRC16 itself (the Open Question this codec
		// resolves in favor of the RFC's literal text).
		hcrc := crc32table.Checksum(header)
		header = binary.LittleEndian.AppendUint16(header, uint16(hcrc))
	}

	if _, err := dst.Write(header); err != nil {
		return err
	}

	if err := deflate.Compress(dst, &noEOFReader{data}, mode); err != nil {
		return err
	}

	var trailer [8]byte
	binary.LittleEndian.PutUint32(trailer[0:4], crc32table.Checksum(data))
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(len(data)))
	_, err = dst.Write(trailer[:])
	return err
}

// noEOFReader adapts a []byte to io.Reader without the bytes.Reader
// dependency, kept deliberately small since Compress already has the
// whole payload in memory.
type noEOFReader struct{ data []byte }

func (r *noEOFReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

// Decompress parses a gzip member from src, writes the decompressed
// payload to dst, and verifies the trailing CRC-32/ISIZE against what was
// actually produced.
func Decompress(dst io.Writer, src io.Reader) (Header, error) {
	// The DEFLATE bit reader buffers any source that is not an
	// io.ByteReader; buffering here once keeps the trailer bytes readable.
	if _, ok := src.(io.ByteReader); !ok {
		src = bufio.NewReader(src)
	}
	hdr, headerBytes, err := readHeader(src)
	if err != nil {
		return Header{}, err
	}

	cw := &countingWriter{w: dst, crc: crc32table.New()}
	if err := deflate.Decompress(cw, src); err != nil {
		return hdr, err
	}

	var trailer [8]byte
	if _, err := io.ReadFull(src, trailer[:]); err != nil {
		return hdr, err
	}
	wantCrc := binary.LittleEndian.Uint32(trailer[0:4])
	wantSize := binary.LittleEndian.Uint32(trailer[4:8])

	if cw.crc.Sum32() != wantCrc {
		return hdr, ErrCrcMismatch
	}
	if cw.size != wantSize {
		return hdr, ErrSizeMismatch
	}
	_ = headerBytes
	return hdr, nil
}

func readHeader(src io.Reader) (Header, []byte, error) {
	var fixed [10]byte
	if _, err := io.ReadFull(src, fixed[:]); err != nil {
		return Header{}, nil, err
	}
	if fixed[0] != magic1 || fixed[1] != magic2 {
		return Header{}, nil, ErrInvalidGzipHeader
	}
	if fixed[2] != methodDeflate {
		return Header{}, nil, ErrUnsupportedMethod
	}
	flags := fixed[3]
	mtime := binary.LittleEndian.Uint32(fixed[4:8])

	all := append([]byte{}, fixed[:]...)
	hdr := Header{
		ModTime: time.Unix(int64(mtime), 0).UTC(),
		OS:      fixed[9],
		Text:    flags&flagText != 0,
	}

	if flags&flagExtra != 0 {
		var xlenBuf [2]byte
		if _, err := io.ReadFull(src, xlenBuf[:]); err != nil {
			return hdr, nil, err
		}
		all = append(all, xlenBuf[:]...)
		xlen := binary.LittleEndian.Uint16(xlenBuf[:])
		extra := make([]byte, xlen)
		if _, err := io.ReadFull(src, extra); err != nil {
			return hdr, nil, err
		}
		all = append(all, extra...)
		hdr.Extra = extra
	}
	if flags&flagName != 0 {
		name, rest, err := readCString(src)
		if err != nil {
			return hdr, nil, err
		}
		all = append(all, rest...)
		hdr.Name = name
	}
	if flags&flagComment != 0 {
		comment, rest, err := readCString(src)
		if err != nil {
			return hdr, nil, err
		}
		all = append(all, rest...)
		hdr.Comment = comment
	}
	if flags&flagHCRC != 0 {
		var hcrcBuf [2]byte
		if _, err := io.ReadFull(src, hcrcBuf[:]); err != nil {
			return hdr, nil, err
		}
		want := binary.LittleEndian.Uint16(hcrcBuf[:])
		got := uint16(crc32table.Checksum(all))
		if got != want {
			return hdr, nil, ErrHeaderCrcMismatch
		}
	}

	return hdr, all, nil
}

// readCString reads bytes up to and including a NUL terminator, returning
// the string without the terminator and the raw bytes including it (for
// FHCRC accumulation).
func readCString(src io.Reader) (string, []byte, error) {
	var raw []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(src, b[:]); err != nil {
			return "", nil, err
		}
		raw = append(raw, b[0])
		if b[0] == 0 {
			break
		}
	}
	return string(raw[:len(raw)-1]), raw, nil
}
