package audio

// Format identifies the container framing of a recorded audio stream.
// It is detected once, from the first bytes of the first payload, and
// never changes for the lifetime of a recording.
type Format int

const (
	// FormatPCM is headerless linear PCM, the conservative default.
	FormatPCM Format = iota
	// FormatWAV is a RIFF/WAVE container.
	FormatWAV
	// FormatMP3 is an MPEG audio stream (frame-sync or ID3-prefixed).
	FormatMP3
	// FormatAAC is an ADTS/AAC stream. The sniffer never produces it on
	// its own (ADTS sync bytes match the MPEG frame-sync rule), but
	// stored .aac files flow through the same compressed handling.
	FormatAAC
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatAAC:
		return "aac"
	default:
		return "pcm"
	}
}

// Ext returns the file extension used when persisting a recording of
// this format. PCM is persisted inside a WAV container, so it shares
// the wav extension.
func (f Format) Ext() string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatAAC:
		return "aac"
	default:
		return "wav"
	}
}

// MIMEType returns the media type handed to transcription services.
func (f Format) MIMEType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatAAC:
		return "audio/aac"
	default:
		return "audio/wav"
	}
}

// Compressed reports whether the stream is self-delimited and must not
// be split at arbitrary offsets. Compressed recordings accumulate in
// memory and are written in a single piece.
func (f Format) Compressed() bool {
	return f == FormatMP3 || f == FormatAAC
}

// FormatFromExt maps a stored file extension back to a Format. Unknown
// extensions fall back to PCM.
func FormatFromExt(ext string) Format {
	switch ext {
	case "wav":
		return FormatWAV
	case "mp3":
		return FormatMP3
	case "aac":
		return FormatAAC
	default:
		return FormatPCM
	}
}

// DetectFormat classifies the container format from the leading bytes
// of a recording. Inputs shorter than 3 bytes are treated as PCM.
func DetectFormat(b []byte) Format {
	if len(b) < 3 {
		return FormatPCM
	}

	// RIFF/WAVE container tag.
	if len(b) >= 4 && b[0] == 'R' && b[1] == 'I' && b[2] == 'F' && b[3] == 'F' {
		return FormatWAV
	}

	// MPEG frame sync: 0xFF followed by a byte with the top 3 bits set.
	if b[0] == 0xFF && b[1]&0xE0 == 0xE0 {
		return FormatMP3
	}

	// ID3 tag prefix.
	if b[0] == 'I' && b[1] == 'D' && b[2] == '3' {
		return FormatMP3
	}

	// Looser frame sync on the high nibble.
	if b[0] == 0xFF && b[1]&0xF0 == 0xF0 {
		return FormatMP3
	}

	return FormatPCM
}
