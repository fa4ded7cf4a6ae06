package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/internal/audio"
	"github.com/halcyonlabs/murmur/server/internal/metrics"
	"github.com/halcyonlabs/murmur/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames

	// pipelineTimeout bounds one transcribe/respond/synthesize run.
	pipelineTimeout = 120 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

var errConnectionClosed = errors.New("connection closed")

// Pipeline is the narrow contract between the session state machine
// and the external collaborators.
type Pipeline interface {
	Reply(ctx context.Context, recording []byte, format audio.Format) (usecase.Exchange, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Archive(ctx context.Context, deviceID string, ex usecase.Exchange)
}

// sessionState is the per-connection recording lifecycle. Every error
// path returns to idle; there is no separate error state.
type sessionState int

const (
	stateIdle sessionState = iota
	stateRecording
	stateFinalizing
	stateProcessing
)

func (s sessionState) String() string {
	switch s {
	case stateRecording:
		return "recording"
	case stateFinalizing:
		return "finalizing"
	case stateProcessing:
		return "processing"
	default:
		return "idle"
	}
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client supervises one device connection: it owns the session state
// machine, routes classified frames into it, and tears everything down
// on disconnect. All session mutation is serialized through mu; the
// recorder's debounce callback never races the reader.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound frames, drained by writePump.
	send chan WriteData

	// done is closed exactly once when the connection is finished;
	// senders use it to fail fast instead of blocking.
	done      chan struct{}
	closeOnce sync.Once

	deviceID string
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	state      sessionState
	recorder   *audio.Recorder
	processing bool
}

// ServeWS upgrades the request and starts the connection's pumps.
func ServeWS(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, deviceID, logger)
	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

func newClient(hub *Hub, conn *websocket.Conn, deviceID string, logger *zap.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		done:     make(chan struct{}),
		deviceID: deviceID,
		logger:   logger.With(zap.String("deviceID", deviceID)),
		metrics:  metrics.Default,
	}
}

// SendText queues a text frame for the device.
func (c *Client) SendText(payload []byte) error {
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// SendBinary queues a binary frame for the device.
func (c *Client) SendBinary(payload []byte) error {
	return c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: payload})
}

func (c *Client) enqueue(data WriteData) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errConnectionClosed
	}
}

// close releases the session resources. Safe to call more than once
// and from any goroutine.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		if c.recorder != nil {
			c.recorder.Discard()
			c.recorder = nil
		}
		c.state = stateIdle
		c.mu.Unlock()
	})
}

// readPump pumps frames from the websocket connection into the
// session state machine.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.close()
		c.conn.Close()
		c.metrics.ConnectionsActive.Dec()
	}()
	c.metrics.ConnectionsActive.Inc()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.handleIncoming(messageType, message)
	}
}

// writePump pumps queued frames to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleIncoming classifies one frame and routes it. Classification
// happens once, here; nothing deeper inspects raw frames.
func (c *Client) handleIncoming(messageType int, data []byte) {
	kind, msg := ClassifyFrame(messageType, data)
	c.metrics.FramesReceived.WithLabelValues(kind.String()).Inc()

	switch kind {
	case FrameControl:
		c.handleControl(msg)
	case FrameAudio:
		c.handleAudio(data)
	default:
		preview := data
		if len(preview) > 100 {
			preview = preview[:100]
		}
		c.logger.Warn("Dropping unrecognized text frame", zap.ByteString("preview", preview))
	}
}

func (c *Client) handleControl(msg ControlMessage) {
	switch msg.Type {
	case controlStartRecording:
		c.handleStart()
	case controlStopRecording:
		c.handleStop()
	default:
		// Protocol leniency: unknown control types never change state.
		c.logger.Warn("Unknown control message type", zap.String("type", msg.Type))
	}
}

// handleStart begins a fresh recording, discarding any stale buffered
// bytes or open file from a previous incomplete session. No file is
// opened yet; that waits for the first payload and format detection.
func (c *Client) handleStart() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.Discard()
	}

	recorder, err := audio.NewRecorder(c.hub.recordingDir, c.hub.wavConfig, c.logger)
	if err != nil {
		c.logger.Error("Failed to start recording session", zap.Error(err))
		c.emitError("Failed to start recording")
		c.recorder = nil
		c.state = stateIdle
		return
	}

	c.recorder = recorder
	c.state = stateRecording
	c.metrics.RecordingsStarted.Inc()
	c.logger.Info("Recording session started")
}

// handleAudio appends one payload to the active recording.
func (c *Client) handleAudio(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.AudioBytesIn.Add(float64(len(data)))

	if c.state != stateRecording || c.recorder == nil {
		c.logger.Debug("Dropping audio payload outside recording state",
			zap.String("state", c.state.String()),
			zap.Int("size", len(data)))
		return
	}

	if err := c.recorder.Append(data); err != nil {
		c.logger.Error("Failed to buffer audio payload", zap.Error(err))
	}
}

// handleStop finalizes the recording and hands it to the pipeline. A
// stop while a pipeline run is in flight is logged and ignored; a stop
// with nothing recorded emits a single error signal and skips the
// pipeline entirely.
func (c *Client) handleStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateProcessing || c.processing {
		// Documented leniency: not surfaced as an error to the device.
		c.logger.Warn("Ignoring stop_recording while already processing")
		return
	}

	if c.state != stateRecording || c.recorder == nil {
		c.logger.Warn("stop_recording without active recording",
			zap.String("state", c.state.String()))
		c.emitError("No audio data recorded")
		c.state = stateIdle
		return
	}

	c.state = stateFinalizing
	recording, err := c.recorder.Finalize()
	format, _ := c.recorder.Format()
	c.recorder = nil

	if err != nil {
		c.logger.Error("Failed to finalize recording", zap.Error(err))
		c.emitError("Failed to process recording")
		c.state = stateIdle
		return
	}

	if len(recording) == 0 {
		c.logger.Info("Recording stopped with no audio data")
		c.metrics.RecordingsEmpty.Inc()
		c.emitError("No audio data recorded")
		c.state = stateIdle
		return
	}

	c.metrics.RecordingsCompleted.Inc()
	c.logger.Info("Recording finalized",
		zap.Int("bytes", len(recording)),
		zap.String("format", format.String()))

	c.processing = true
	c.state = stateProcessing
	go c.runPipeline(recording, format)
}

// runPipeline drives one finalized recording through the external
// collaborators and streams the reply back. It is the only long
// suspension on the session timeline; the processing guard keeps it
// single-flight per connection while other connections proceed.
func (c *Client) runPipeline(recording []byte, format audio.Format) {
	start := time.Now()
	defer func() {
		c.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		c.mu.Lock()
		c.processing = false
		if c.state == stateProcessing {
			c.state = stateIdle
		}
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	ex, err := c.hub.pipeline.Reply(ctx, recording, format)
	if err != nil {
		c.logger.Error("Pipeline failed", zap.Error(err))
		c.emitError("Failed to process recording")
		return
	}

	textSignal := newTextResponse(ex.Reply)
	if err := c.SendText(textSignal); err != nil {
		c.logger.Warn("Connection closed before text response", zap.Error(err))
		return
	}
	c.hub.BroadcastExcept(textSignal, c)

	c.emitInfo("tts_start")

	replyAudio, err := c.hub.pipeline.Synthesize(ctx, ex.Reply)
	if err != nil {
		// Text already delivered; note that audio is unavailable and
		// skip the chunk phase.
		c.logger.Warn("Synthesis failed, reply is text only", zap.Error(err))
		c.emitInfo("tts_unavailable")
		c.archive(ex)
		return
	}
	ex.ReplyAudio = replyAudio
	ex.ReplyFormat = audio.DetectFormat(replyAudio)

	c.emitInfo("tts_done")

	err = c.hub.streamer.Send(ctx, c, &broadcastOthers{hub: c.hub, origin: c}, replyAudio)
	if err != nil {
		c.metrics.PipelineFailures.WithLabelValues("stream").Inc()
		c.logger.Error("Failed to stream reply audio", zap.Error(err))
	}

	c.archive(ex)
}

func (c *Client) archive(ex usecase.Exchange) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c.hub.pipeline.Archive(ctx, c.deviceID, ex)
}

// emitError delivers one error signal to the device and mirrors it to
// other listeners.
func (c *Client) emitError(message string) {
	payload := newErrorSignal(message)
	if err := c.SendText(payload); err != nil {
		c.logger.Debug("Could not deliver error signal", zap.Error(err))
	}
	c.hub.BroadcastExcept(payload, c)
}

func (c *Client) emitInfo(message string) {
	payload := newInfoSignal(message)
	if err := c.SendText(payload); err != nil {
		c.logger.Debug("Could not deliver info signal", zap.Error(err))
	}
	c.hub.BroadcastExcept(payload, c)
}

// broadcastOthers adapts the hub so the streamer's completion signal
// reaches listeners without duplicating the device's own copy.
type broadcastOthers struct {
	hub    *Hub
	origin *Client
}

func (b *broadcastOthers) Broadcast(payload []byte) {
	b.hub.BroadcastExcept(payload, b.origin)
}
