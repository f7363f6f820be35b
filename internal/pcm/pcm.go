// Package pcm parses the standard 44-byte RIFF/WAVE/fmt/data header and
// converts raw PCM bytes to float32 samples, ported from
// original_source/src/pcm_reader.cc's Read16kPcm/ReadPcmHeader.
package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedFormat reports a wave format outside the one this package
// supports: mono, 16 kHz, 8/16/32-bit signed PCM.
var ErrUnsupportedFormat = errors.New("pcm: unsupported wave format")

// ErrCorruptHeader reports a header whose fixed tags or declared sizes
// don't match what a well-formed RIFF/WAVE file must contain.
var ErrCorruptHeader = errors.New("pcm: corrupt wave header")

// Format describes a PCM stream's layout, as declared by a WAVE header.
type Format struct {
	SampleRate    int32
	BitsPerSample int16
	NumChannels   int16
}

// Supported reports whether f is mono, 16 kHz, 8/16/32-bit PCM -- the only
// format a session accepts.
func (f Format) Supported() bool {
	return f.NumChannels == 1 &&
		f.SampleRate == 16000 &&
		(f.BitsPerSample == 8 || f.BitsPerSample == 16 || f.BitsPerSample == 32)
}

// Header is a parsed 44-byte canonical WAVE header.
type Header struct {
	Format   Format
	DataSize int32 // bytes in the data subchunk, as declared by the header
}

// ReadHeader reads the 44-byte RIFF/WAVE/fmt/data header from r. After a
// successful call, r is positioned at the start of the data subchunk's
// payload, as the original ReadPcmHeader leaves fd.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, 44)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("pcm: reading header: %w", err)
	}

	if string(buf[0:4]) != "RIFF" {
		return Header{}, fmt.Errorf("%w: missing RIFF tag", ErrCorruptHeader)
	}
	if string(buf[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("%w: missing WAVE tag", ErrCorruptHeader)
	}
	if string(buf[12:16]) != "fmt " {
		return Header{}, fmt.Errorf("%w: missing fmt subchunk", ErrCorruptHeader)
	}
	subchunk1Size := int32(binary.LittleEndian.Uint32(buf[16:20]))
	if subchunk1Size != 16 {
		return Header{}, fmt.Errorf("%w: fmt subchunk size = %d, want 16", ErrCorruptHeader, subchunk1Size)
	}
	audioFormat := int16(binary.LittleEndian.Uint16(buf[20:22]))
	if audioFormat != 1 {
		return Header{}, fmt.Errorf("%w: audio format = %d, want 1 (PCM)", ErrUnsupportedFormat, audioFormat)
	}

	numChannels := int16(binary.LittleEndian.Uint16(buf[22:24]))
	sampleRate := int32(binary.LittleEndian.Uint32(buf[24:28]))
	byteRate := int32(binary.LittleEndian.Uint32(buf[28:32]))
	blockAlign := int16(binary.LittleEndian.Uint16(buf[32:34]))
	bitsPerSample := int16(binary.LittleEndian.Uint16(buf[34:36]))

	if byteRate != sampleRate*int32(bitsPerSample)/8 {
		return Header{}, fmt.Errorf("%w: byte rate does not match sample rate and bit depth", ErrCorruptHeader)
	}
	if blockAlign != bitsPerSample/8 {
		return Header{}, fmt.Errorf("%w: block align does not match bit depth", ErrCorruptHeader)
	}
	if string(buf[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: missing data subchunk", ErrCorruptHeader)
	}

	dataSize := int32(binary.LittleEndian.Uint32(buf[40:44]))
	format := Format{SampleRate: sampleRate, BitsPerSample: bitsPerSample, NumChannels: numChannels}
	if !format.Supported() {
		return Header{}, fmt.Errorf("%w: %+v", ErrUnsupportedFormat, format)
	}

	return Header{Format: format, DataSize: dataSize}, nil
}

// DecodeSamples converts raw little-endian signed PCM bytes to float32
// samples per format.BitsPerSample, matching Read16kPcm's per-sample
// switch.
func DecodeSamples(data []byte, format Format) ([]float32, error) {
	bytesPerSample := int(format.BitsPerSample) / 8
	if bytesPerSample == 0 || len(data)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: data length %d not a multiple of %d-byte samples",
			ErrCorruptHeader, len(data), bytesPerSample)
	}

	n := len(data) / bytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		off := i * bytesPerSample
		switch format.BitsPerSample {
		case 8:
			out[i] = float32(int8(data[off]))
		case 16:
			out[i] = float32(int16(binary.LittleEndian.Uint16(data[off : off+2])))
		case 32:
			out[i] = float32(int32(binary.LittleEndian.Uint32(data[off : off+4])))
		default:
			return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, format.BitsPerSample)
		}
	}
	return out, nil
}

// StreamDecoder converts a sequence of arbitrarily-sized PCM byte chunks
// into float32 samples, buffering any trailing partial sample across calls.
// Ported from original_source/src/pcm_reader.cc's WaveReader.
type StreamDecoder struct {
	format  Format
	pending []byte
}

// NewStreamDecoder creates a decoder for the given format. Returns
// ErrUnsupportedFormat if format isn't one a session can accept.
func NewStreamDecoder(format Format) (*StreamDecoder, error) {
	if !format.Supported() {
		return nil, fmt.Errorf("%w: %+v", ErrUnsupportedFormat, format)
	}
	return &StreamDecoder{format: format}, nil
}

// Process decodes as many complete samples as chunk (plus any buffered
// remainder) contains, buffering the rest for the next call.
func (d *StreamDecoder) Process(chunk []byte) ([]float32, error) {
	bytesPerSample := int(d.format.BitsPerSample) / 8
	buf := append(d.pending, chunk...)

	usable := (len(buf) / bytesPerSample) * bytesPerSample
	samples, err := DecodeSamples(buf[:usable], d.format)
	if err != nil {
		return nil, err
	}

	d.pending = append(d.pending[:0], buf[usable:]...)
	return samples, nil
}

// Reset discards any buffered partial sample, starting a fresh stream.
func (d *StreamDecoder) Reset() { d.pending = d.pending[:0] }
