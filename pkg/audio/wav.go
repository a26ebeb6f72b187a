package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE

	// fmt chunk bytes up to the end of the format code that opens the
	// SubFormat GUID at offset 24
	wavExtensibleFmtSize = 26
)

// decodeWAV decodes integer PCM WAV to mono float32 in [-1, 1].
func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}

	format := decoder.WavAudioFormat
	if format == wavFormatExtensible {
		sub, err := wavSubFormat(r)
		if err != nil {
			return nil, 0, fmt.Errorf("wav extensible header: %w", err)
		}
		format = sub
		decoder = wav.NewDecoder(r)
	}
	if format != wavFormatPCM {
		return nil, 0, fmt.Errorf("wav audio format %#x is not integer PCM", format)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wav decode: %w", err)
	}

	channels := max(buf.Format.NumChannels, 1)
	bitDepth := int(decoder.BitDepth)
	scale := float32(int(1) << (bitDepth - 1))
	// 8-bit samples are unsigned
	var offset int
	if bitDepth == 8 {
		offset = 128
	}

	samples := make([]float32, len(buf.Data)/channels)
	for i := range samples {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c] - offset
		}
		samples[i] = float32(sum) / float32(channels) / scale
	}
	return samples, int(decoder.SampleRate), nil
}

// wavSubFormat reads the format code from a WAVE_FORMAT_EXTENSIBLE fmt chunk
// and rewinds r to the start of the file.
func wavSubFormat(r io.ReadSeeker) (uint16, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	defer func() { _, _ = r.Seek(0, io.SeekStart) }()

	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("fmt chunk not found: %w", err)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}
		if ch.Size < wavExtensibleFmtSize {
			return 0, fmt.Errorf("fmt chunk of %d bytes is too short", ch.Size)
		}
		var hdr [wavExtensibleFmtSize]byte
		if err := ch.ReadLE(&hdr); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint16(hdr[24:]), nil
	}
}
