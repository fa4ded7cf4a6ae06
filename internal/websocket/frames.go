package websocket

import (
	"bytes"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// controlReparseLimit: binary frames no larger than this get a second
// textual parse attempt before falling back to audio. Small embedded
// firmwares sometimes send their control JSON as binary frames; real
// audio payloads are larger than this in practice. A compressed frame
// that happens to start with '{' and parse as JSON would be
// misclassified here; preserved deliberately, matching device
// behavior in the field.
const controlReparseLimit = 512

// ControlMessage is an inbound structured frame from the device.
type ControlMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Recognized control message types.
const (
	controlStartRecording = "start_recording"
	controlStopRecording  = "stop_recording"
)

// FrameKind is the classification of one inbound frame.
type FrameKind int

const (
	// FrameAudio is an opaque audio payload.
	FrameAudio FrameKind = iota
	// FrameControl is a well-formed control message.
	FrameControl
	// FrameUnrecognized is text that is not a control message; it is
	// logged and dropped, never routed as audio.
	FrameUnrecognized
)

func (k FrameKind) String() string {
	switch k {
	case FrameControl:
		return "control"
	case FrameUnrecognized:
		return "unrecognized"
	default:
		return "audio"
	}
}

// ClassifyFrame resolves one websocket frame into exactly one of
// control, audio, or unrecognized. The decision is made once, here, at
// the transport boundary.
//
// A frame is a control message when its content trims to something
// starting with '{' and parses as a JSON object with a non-empty
// "type" field. Binary frames get that check too, and small binary
// frames get a second attempt, because some devices send control JSON
// on the binary channel. Anything JSON-looking that fails to parse
// falls through to audio; that leniency is deliberate and must not
// surface an error to the caller.
func ClassifyFrame(messageType int, data []byte) (FrameKind, ControlMessage) {
	if messageType == websocket.TextMessage {
		if msg, ok := parseControl(data); ok {
			return FrameControl, msg
		}
		return FrameUnrecognized, ControlMessage{}
	}

	if msg, ok := parseControl(data); ok {
		return FrameControl, msg
	}
	if len(data) <= controlReparseLimit {
		// Second attempt for small frames: C-string senders pad their
		// JSON with trailing NULs, which the strict parse rejects.
		if msg, ok := parseControl(bytes.Trim(data, "\x00")); ok {
			return FrameControl, msg
		}
	}
	return FrameAudio, ControlMessage{}
}

func parseControl(data []byte) (ControlMessage, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ControlMessage{}, false
	}
	var msg ControlMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return ControlMessage{}, false
	}
	if msg.Type == "" {
		return ControlMessage{}, false
	}
	return msg, true
}
