package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func buildWaveHeader(t *testing.T, sampleRate int32, bits int16, dataSize int32) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, int32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, int16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, sampleRate*int32(bits)/8) // byte rate
	binary.Write(&buf, binary.LittleEndian, int16(bits/8))            // block align
	binary.Write(&buf, binary.LittleEndian, bits)
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	return buf.Bytes()
}

func TestReadHeaderAccepts16kMono16Bit(t *testing.T) {
	data := buildWaveHeader(t, 16000, 16, 4)
	hdr, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadHeader error = %v", err)
	}
	if hdr.Format.SampleRate != 16000 || hdr.Format.BitsPerSample != 16 || hdr.Format.NumChannels != 1 {
		t.Errorf("Format = %+v, want 16kHz mono 16-bit", hdr.Format)
	}
	if hdr.DataSize != 4 {
		t.Errorf("DataSize = %d, want 4", hdr.DataSize)
	}
}

func TestReadHeaderRejectsWrongSampleRate(t *testing.T) {
	data := buildWaveHeader(t, 8000, 16, 4)
	_, err := ReadHeader(bytes.NewReader(data))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestReadHeaderRejectsBadTag(t *testing.T) {
	data := buildWaveHeader(t, 16000, 16, 4)
	data[0] = 'X' // corrupt the RIFF tag
	_, err := ReadHeader(bytes.NewReader(data))
	if !errors.Is(err, ErrCorruptHeader) {
		t.Fatalf("err = %v, want ErrCorruptHeader", err)
	}
}

func TestDecodeSamples16Bit(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []int16{0, 1, -1, 32767, -32768} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	samples, err := DecodeSamples(buf.Bytes(), Format{SampleRate: 16000, BitsPerSample: 16, NumChannels: 1})
	if err != nil {
		t.Fatalf("DecodeSamples error = %v", err)
	}
	want := []float32{0, 1, -1, 32767, -32768}
	for i, w := range want {
		if samples[i] != w {
			t.Errorf("samples[%d] = %v, want %v", i, samples[i], w)
		}
	}
}

func TestStreamDecoderBuffersPartialSampleAcrossCalls(t *testing.T) {
	d, err := NewStreamDecoder(Format{SampleRate: 16000, BitsPerSample: 16, NumChannels: 1})
	if err != nil {
		t.Fatalf("NewStreamDecoder error = %v", err)
	}

	var full bytes.Buffer
	binary.Write(&full, binary.LittleEndian, int16(100))
	binary.Write(&full, binary.LittleEndian, int16(-200))
	whole := full.Bytes()

	// Split the two 2-byte samples across a 1-byte boundary.
	first, err := d.Process(whole[:1])
	if err != nil {
		t.Fatalf("Process(first) error = %v", err)
	}
	if len(first) != 0 {
		t.Errorf("Process(first) = %v, want no complete samples yet", first)
	}

	second, err := d.Process(whole[1:])
	if err != nil {
		t.Fatalf("Process(second) error = %v", err)
	}
	want := []float32{100, -200}
	if len(second) != 2 || second[0] != want[0] || second[1] != want[1] {
		t.Errorf("Process(second) = %v, want %v", second, want)
	}
}

func TestStreamDecoderRejectsUnsupportedFormat(t *testing.T) {
	_, err := NewStreamDecoder(Format{SampleRate: 44100, BitsPerSample: 16, NumChannels: 1})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}
