// Package audio wraps provider audio in a playable container, serves byte ranges of it,
// and encodes it for the cache.
package audio

import (
	"bytes"
	"encoding/binary"
)

const (
	ContentTypeWAV = "audio/wav"

	HeaderSize    = 44
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
)

var riff = []byte("RIFF")

// IsContainer reports whether data already starts with a RIFF header.
func IsContainer(data []byte) bool {
	return bytes.HasPrefix(data, riff)
}

// EnsureContainer returns data unchanged when it is already a RIFF file; otherwise it treats
// data as mono 16-bit 24kHz PCM and prepends a canonical 44-byte WAV header.
func EnsureContainer(pcm []byte) []byte {
	if IsContainer(pcm) {
		return pcm
	}

	const (
		blockAlign = Channels * BitsPerSample / 8
		byteRate   = SampleRate * blockAlign
	)
	dataSize := uint32(len(pcm))

	out := make([]byte, HeaderSize, HeaderSize+len(pcm))
	copy(out[0:4], riff)
	binary.LittleEndian.PutUint32(out[4:8], dataSize+HeaderSize-8)
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], Channels)
	binary.LittleEndian.PutUint32(out[24:28], SampleRate)
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], BitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)

	return append(out, pcm...)
}
