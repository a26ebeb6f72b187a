package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// Samples go-mp3 emits before the first encoded sample, on top of the
// encoder delay. Measured against a browser decoder.
const goMP3DecoderDelay = 924

// Encoder delay assumed when the file has no LAME header.
const defaultEncoderDelay = 576

// decodeMP3 decodes MP3 to mono and trims the encoder and decoder delay so
// sample 0 lines up with what players output.
func decodeMP3(r io.ReadSeeker) ([]float32, int, error) {
	delay := lameEncoderDelay(r) + goMP3DecoderDelay
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}

	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decoder: %w", err)
	}

	// 16-bit little-endian stereo, 4 bytes per frame
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}

	samples := make([]float32, len(pcm)/4)
	for i := range samples {
		off := i * 4
		left := int16(binary.LittleEndian.Uint16(pcm[off:]))
		right := int16(binary.LittleEndian.Uint16(pcm[off+2:]))
		samples[i] = (float32(left) + float32(right)) / 2 / 32768
	}

	if len(samples) > delay {
		samples = samples[delay:]
	}
	return samples, decoder.SampleRate(), nil
}

// lameEncoderDelay reads the encoder delay from the LAME tag in the first
// 4KB of r, falling back to defaultEncoderDelay.
func lameEncoderDelay(r io.Reader) int {
	buf := make([]byte, 4096)
	n, err := io.ReadFull(r, buf)
	if err != nil && n < 200 {
		return defaultEncoderDelay
	}
	return parseLAMEDelay(buf[:n])
}

// parseLAMEDelay extracts the 12-bit delay stored 21 bytes after "LAME".
func parseLAMEDelay(header []byte) int {
	idx := bytes.Index(header, []byte("LAME"))
	if idx == -1 || idx+24 > len(header) {
		return defaultEncoderDelay
	}

	b := header[idx+21 : idx+24]
	delay := int(b[0])<<4 | int(b[1])>>4
	if delay > 4096 {
		return defaultEncoderDelay
	}
	return delay
}
