package hashing

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// Container signatures checked by SniffVideo. Identification is by content,
// not extension, so a renamed archive never reaches the hash pass.
var (
	ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3} // Matroska / WebM
	riffMagic = []byte("RIFF")
	aviMagic  = []byte("AVI ")
	ftypMagic = []byte("ftyp") // MP4 family, at offset 4
	oggMagic  = []byte("OggS")
	flvMagic  = []byte("FLV")
	mpegMagic = []byte{0x00, 0x00, 0x01, 0xBA} // MPEG-PS pack header
)

// tsPacketSize is the MPEG-TS packet length. A transport stream repeats the
// 0x47 sync byte at the start of every packet, which is what distinguishes it
// from arbitrary data that merely begins with 0x47.
const tsPacketSize = 188

// sniffLen covers the first three TS packets.
const sniffLen = 3 * tsPacketSize

// SniffVideo reports whether the file starts with a recognized video
// container signature.
func SniffVideo(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	if n < 12 {
		return false, nil
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, ebmlMagic):
		return true, nil
	case bytes.HasPrefix(header, riffMagic) && bytes.Equal(header[8:12], aviMagic):
		return true, nil
	case bytes.Equal(header[4:8], ftypMagic):
		return true, nil
	case bytes.HasPrefix(header, oggMagic):
		return true, nil
	case bytes.HasPrefix(header, flvMagic):
		return true, nil
	case isTransportStream(header):
		return true, nil
	case bytes.HasPrefix(header, mpegMagic):
		return true, nil
	}
	return false, nil
}

// isTransportStream checks for the 0x47 sync byte at three consecutive packet
// boundaries.
func isTransportStream(header []byte) bool {
	if len(header) < 2*tsPacketSize+1 {
		return false
	}
	return header[0] == 0x47 && header[tsPacketSize] == 0x47 && header[2*tsPacketSize] == 0x47
}
