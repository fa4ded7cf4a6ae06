package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWAVFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	cfg := WAVConfig{SampleRate: 16000, Channels: 1, BitDepth: 16}

	w, err := NewWAVFileWriter(path, cfg)
	if err != nil {
		t.Fatalf("NewWAVFileWriter() error = %v", err)
	}

	payload := make([]byte, 320)
	for i := range payload {
		payload[i] = byte(i)
	}
	if _, err := w.Write(payload[:100]); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := w.Write(payload[100:]); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if len(data) != wavHeaderSize+len(payload) {
		t.Fatalf("file size = %d, want %d", len(data), wavHeaderSize+len(payload))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE tags")
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != uint32(wavHeaderSize-8+len(payload)) {
		t.Errorf("chunk size = %d, want %d", got, wavHeaderSize-8+len(payload))
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(payload)) {
		t.Errorf("data size = %d, want %d", got, len(payload))
	}
	for i, b := range data[wavHeaderSize:] {
		if b != payload[i] {
			t.Fatalf("data byte %d = %#x, want %#x", i, b, payload[i])
		}
	}
}

func TestWAVFileWriterCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := NewWAVFileWriter(path, DefaultWAVConfig())
	if err != nil {
		t.Fatalf("NewWAVFileWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := w.Write([]byte{0x00}); err == nil {
		t.Error("Write() after Close() should fail")
	}
}

func TestWAVFileWriterRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if _, err := NewWAVFileWriter(path, WAVConfig{}); err == nil {
		t.Error("expected error for zero config")
	}
}
