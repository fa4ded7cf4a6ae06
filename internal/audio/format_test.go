package audio

import (
	"bytes"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  Format
	}{
		{
			name:  "riff header",
			input: []byte{'R', 'I', 'F', 'F', 0x24, 0x00, 0x00, 0x00, 'W', 'A', 'V', 'E'},
			want:  FormatWAV,
		},
		{
			name:  "mpeg frame sync",
			input: []byte{0xFF, 0xFB, 0x90, 0x00},
			want:  FormatMP3,
		},
		{
			name:  "mpeg frame sync mpeg2",
			input: []byte{0xFF, 0xF3, 0x40, 0x00},
			want:  FormatMP3,
		},
		{
			name:  "id3 tag",
			input: []byte{'I', 'D', '3', 0x04, 0x00},
			want:  FormatMP3,
		},
		{
			name:  "plain pcm samples",
			input: []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05},
			want:  FormatPCM,
		},
		{
			name:  "sync byte without valid second byte",
			input: []byte{0xFF, 0x0F, 0x00},
			want:  FormatPCM,
		},
		{
			name:  "empty input",
			input: nil,
			want:  FormatPCM,
		},
		{
			name:  "too short for classification",
			input: []byte{0xFF, 0xFB},
			want:  FormatPCM,
		},
		{
			name:  "riff prefix too short",
			input: []byte{'R', 'I', 'F'},
			want:  FormatPCM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.input); got != tt.want {
				t.Errorf("DetectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrips(t *testing.T) {
	for _, f := range []Format{FormatPCM, FormatWAV, FormatMP3, FormatAAC} {
		if got := FormatFromExt(f.Ext()); got.Ext() != f.Ext() {
			t.Errorf("FormatFromExt(%q).Ext() = %q, want %q", f.Ext(), got.Ext(), f.Ext())
		}
	}
}

func TestFormatCompressed(t *testing.T) {
	if FormatPCM.Compressed() || FormatWAV.Compressed() {
		t.Error("pcm/wav must be chunk-safe")
	}
	if !FormatMP3.Compressed() || !FormatAAC.Compressed() {
		t.Error("mp3/aac must be treated as self-delimited")
	}
}

func TestDetectFormatIgnoresLaterBytes(t *testing.T) {
	// Only the leading bytes matter; a RIFF tag buried mid-buffer does
	// not reclassify the stream.
	input := append([]byte{0x00, 0x01, 0x02, 0x03}, []byte("RIFF")...)
	if got := DetectFormat(input); got != FormatPCM {
		t.Errorf("DetectFormat() = %v, want %v", got, FormatPCM)
	}
	if !bytes.HasPrefix(input[4:], []byte("RIFF")) {
		t.Fatal("test fixture corrupted")
	}
}
