package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sniff(t *testing.T, header []byte) bool {
	t.Helper()
	ok, err := SniffVideo(writeTempFile(t, header))
	require.NoError(t, err)
	return ok
}

func TestSniffVideo_Containers(t *testing.T) {
	pad := func(b []byte) []byte {
		out := make([]byte, 16)
		copy(out, b)
		return out
	}

	assert.True(t, sniff(t, pad([]byte{0x1A, 0x45, 0xDF, 0xA3})), "matroska")
	assert.True(t, sniff(t, pad([]byte("RIFF\x00\x00\x00\x00AVI "))), "avi")
	assert.True(t, sniff(t, pad([]byte("\x00\x00\x00\x20ftypisom"))), "mp4")
	assert.True(t, sniff(t, pad([]byte("OggS"))), "ogg")
	assert.True(t, sniff(t, pad([]byte("FLV\x01"))), "flv")
	assert.True(t, sniff(t, tsPackets(3)), "mpeg-ts")
	assert.True(t, sniff(t, pad([]byte{0x00, 0x00, 0x01, 0xBA})), "mpeg-ps")
}

// tsPackets builds n transport-stream packets with the sync byte in place.
func tsPackets(n int) []byte {
	out := make([]byte, n*tsPacketSize)
	for i := 0; i < n; i++ {
		copy(out[i*tsPacketSize:], []byte{0x47, 0x40, 0x00, 0x10})
	}
	return out
}

func TestSniffVideo_TransportStreamNeedsPacketFraming(t *testing.T) {
	// A lone 0x47 first byte is not a transport stream.
	assert.False(t, sniff(t, []byte("GIF89a not a video at all")), "gif")
	assert.False(t, sniff(t, []byte("Greetings, this is plain text")), "text starting with G")

	// Sync bytes at the wrong stride do not qualify either.
	broken := tsPackets(3)
	broken[tsPacketSize] = 0x00
	assert.False(t, sniff(t, broken), "missing second sync byte")

	// Two full packets are not enough to confirm the framing.
	assert.False(t, sniff(t, tsPackets(2)), "too short to verify three packets")
}

func TestSniffVideo_RejectsNonVideo(t *testing.T) {
	assert.False(t, sniff(t, []byte("PK\x03\x04 a zip archive, not video")), "zip")
	assert.False(t, sniff(t, []byte("#!/bin/sh\necho renamed script")), "text")
}

func TestSniffVideo_ShortFile(t *testing.T) {
	assert.False(t, sniff(t, []byte("tiny")))
}

func TestSniffVideo_RiffWithoutAVI(t *testing.T) {
	header := make([]byte, 16)
	copy(header, "RIFF\x00\x00\x00\x00WAVE")
	assert.False(t, sniff(t, header), "wav audio is not a video container")
}
