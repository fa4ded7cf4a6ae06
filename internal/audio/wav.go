package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// WAVConfig describes the PCM stream written into a WAV container.
type WAVConfig struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultWAVConfig matches the embedded microphone's output.
func DefaultWAVConfig() WAVConfig {
	return WAVConfig{
		SampleRate: 44100,
		Channels:   1,
		BitDepth:   16,
	}
}

// wavHeader is the canonical 44-byte PCM WAV header.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

const wavHeaderSize = 44

// WAVFileWriter streams PCM data into a WAV file. The header is
// written up front with zero sizes and patched on Close, so the file
// is self-describing once closed.
type WAVFileWriter struct {
	file    *os.File
	config  WAVConfig
	dataLen uint32
	closed  bool
}

// NewWAVFileWriter creates the file at path and writes the provisional
// header.
func NewWAVFileWriter(path string, config WAVConfig) (*WAVFileWriter, error) {
	if config.SampleRate <= 0 || config.Channels <= 0 || config.BitDepth <= 0 {
		return nil, fmt.Errorf("invalid wav config: %+v", config)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}

	w := &WAVFileWriter{file: file, config: config}
	if err := w.writeHeader(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

func (w *WAVFileWriter) writeHeader() error {
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     wavHeaderSize - 8 + w.dataLen,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(w.config.Channels),
		SampleRate:    uint32(w.config.SampleRate),
		ByteRate:      uint32(w.config.SampleRate * w.config.Channels * w.config.BitDepth / 8),
		BlockAlign:    uint16(w.config.Channels * w.config.BitDepth / 8),
		BitsPerSample: uint16(w.config.BitDepth),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: w.dataLen,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to encode wav header: %w", err)
	}
	if _, err := w.file.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	return nil
}

// Write appends PCM bytes after the header.
func (w *WAVFileWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("wav writer is closed")
	}
	n, err := w.file.WriteAt(p, int64(wavHeaderSize+w.dataLen))
	w.dataLen += uint32(n)
	if err != nil {
		return n, fmt.Errorf("failed to write audio data: %w", err)
	}
	return n, nil
}

// Path returns the location of the file being written.
func (w *WAVFileWriter) Path() string {
	return w.file.Name()
}

// Close patches the final sizes into the header and syncs the file to
// disk. Close is idempotent.
func (w *WAVFileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writeHeader(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to sync wav file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close wav file: %w", err)
	}
	return nil
}
