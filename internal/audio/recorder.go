package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// flushDelay is the debounce window: a pending flush fires once no
	// new payload has arrived for this long.
	flushDelay = 500 * time.Millisecond

	// maxPending forces an immediate flush regardless of the debounce
	// timer once this many unflushed bytes have accumulated.
	maxPending = 1 << 20 // 1 MiB
)

// Recorder assembles one recording from a device's audio payloads.
//
// The container format is detected from the first non-empty payload and
// fixed for the rest of the recording. PCM and WAV payloads stream
// through a WAV file writer, flushed on a debounce timer or when the
// pending buffer grows past maxPending. MP3 and AAC payloads are
// self-delimited compressed streams that must not be split, so they
// accumulate in memory and are written once, at Finalize.
type Recorder struct {
	dir    string
	wavCfg WAVConfig
	logger *zap.Logger

	mu         sync.Mutex
	format     Format
	detected   bool
	pending    []byte
	received   int
	writer     *WAVFileWriter
	path       string
	flushTimer *time.Timer
	flushing   bool
	done       bool
}

// NewRecorder creates a recorder that persists into dir.
func NewRecorder(dir string, wavCfg WAVConfig, logger *zap.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording dir: %w", err)
	}
	return &Recorder{
		dir:    dir,
		wavCfg: wavCfg,
		logger: logger,
	}, nil
}

// Format returns the detected container format. The second return is
// false until the first non-empty payload has been seen.
func (r *Recorder) Format() (Format, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format, r.detected
}

// Path returns the backing file path, empty until known.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// BytesReceived returns the total payload bytes appended so far.
func (r *Recorder) BytesReceived() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}

// Append adds one audio payload to the recording.
func (r *Recorder) Append(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return fmt.Errorf("recorder already finalized")
	}
	if len(data) == 0 {
		return nil
	}

	if !r.detected {
		r.format = DetectFormat(data)
		r.detected = true
		r.logger.Info("Detected audio format", zap.String("format", r.format.String()))

		name := fmt.Sprintf("recording-%s.%s", uuid.NewString(), r.format.Ext())
		r.path = filepath.Join(r.dir, name)

		if !r.format.Compressed() {
			writer, err := NewWAVFileWriter(r.path, r.wavCfg)
			if err != nil {
				r.detected = false
				r.path = ""
				return err
			}
			r.writer = writer
		}
	}

	r.pending = append(r.pending, data...)
	r.received += len(data)

	if r.format.Compressed() {
		// Never chunked mid-stream; one write happens at Finalize.
		return nil
	}

	if len(r.pending) >= maxPending {
		r.cancelTimerLocked()
		return r.flushLocked()
	}

	r.scheduleFlushLocked()
	return nil
}

// scheduleFlushLocked arms or re-arms the debounce timer.
func (r *Recorder) scheduleFlushLocked() {
	r.cancelTimerLocked()
	r.flushTimer = time.AfterFunc(flushDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.done || len(r.pending) == 0 {
			return
		}
		if err := r.flushLocked(); err != nil {
			r.logger.Error("Debounced flush failed", zap.Error(err))
		}
	})
}

func (r *Recorder) cancelTimerLocked() {
	if r.flushTimer != nil {
		r.flushTimer.Stop()
		r.flushTimer = nil
	}
}

// flushLocked writes the pending buffer through the WAV writer. A
// flush attempted while one is in flight is a no-op; the next trigger
// picks up the remaining bytes.
func (r *Recorder) flushLocked() error {
	if r.flushing || r.writer == nil || len(r.pending) == 0 {
		return nil
	}
	r.flushing = true
	defer func() { r.flushing = false }()

	buf := r.pending
	r.pending = nil
	if _, err := r.writer.Write(buf); err != nil {
		return fmt.Errorf("failed to flush audio buffer: %w", err)
	}
	r.logger.Debug("Flushed audio buffer", zap.Int("bytes", len(buf)))
	return nil
}

// Finalize completes the recording and returns the full assembled
// bytes: read back from the backing file for PCM/WAV, straight from
// memory for compressed streams. A recording that never saw a payload
// returns nil.
func (r *Recorder) Finalize() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return nil, fmt.Errorf("recorder already finalized")
	}
	r.done = true
	r.cancelTimerLocked()

	if !r.detected {
		return nil, nil
	}

	if r.format.Compressed() {
		if len(r.pending) == 0 {
			return nil, nil
		}
		if err := os.WriteFile(r.path, r.pending, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write compressed recording: %w", err)
		}
		r.logger.Info("Saved compressed recording",
			zap.String("path", r.path),
			zap.Int("bytes", len(r.pending)))
		return r.pending, nil
	}

	if err := r.flushLocked(); err != nil {
		r.writer.Close()
		return nil, err
	}
	if err := r.writer.Close(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read back recording: %w", err)
	}
	r.logger.Info("Finalized recording",
		zap.String("path", r.path),
		zap.Int("bytes", len(data)))
	return data, nil
}

// Discard stops the timer, closes any open writer, and drops buffered
// bytes. Used on reset and disconnect; safe to call at any point.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.done = true
	r.cancelTimerLocked()
	r.pending = nil
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			r.logger.Warn("Failed to close writer on discard", zap.Error(err))
		}
		r.writer = nil
	}
}
