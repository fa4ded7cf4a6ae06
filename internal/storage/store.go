// Package storage persists completed exchanges under a per-boot
// session directory and serves them back to the browse API.
//
// Layout:
//
//	responses/<session>/audio/response_<ts>.<ext>
//	responses/<session>/text/response_<ts>.txt
//	responses/<session>/metadata_<ts>.json
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/internal/audio"
)

// ResponseMetadata is the JSON document written next to each saved
// exchange.
type ResponseMetadata struct {
	Timestamp  string `json:"timestamp"`
	Transcript string `json:"transcript,omitempty"`
	TextPath   string `json:"text_path"`
	AudioPath  string `json:"audio_path,omitempty"`
	AudioSize  int    `json:"audio_size,omitempty"`
	Format     string `json:"format,omitempty"`
}

// ResponseStore writes one server boot's exchanges into a fresh
// session directory.
type ResponseStore struct {
	baseDir   string
	sessionID string
	logger    *zap.Logger

	mu sync.Mutex
}

// NewResponseStore creates the session directory tree under baseDir.
func NewResponseStore(baseDir string, logger *zap.Logger) (*ResponseStore, error) {
	sessionID := fmt.Sprintf("%s_%s", time.Now().Format("2006-01-02"), uuid.NewString()[:6])

	for _, dir := range []string{
		filepath.Join(baseDir, sessionID, "audio"),
		filepath.Join(baseDir, sessionID, "text"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create response dir: %w", err)
		}
	}

	return &ResponseStore{
		baseDir:   baseDir,
		sessionID: sessionID,
		logger:    logger,
	}, nil
}

// SessionID returns the identifier of the current session directory.
func (s *ResponseStore) SessionID() string {
	return s.sessionID
}

func fileTimestamp() string {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05.000Z")
	return strings.ReplaceAll(ts, ".", "-")
}

// SaveText writes reply text and returns its path.
func (s *ResponseStore) SaveText(text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.baseDir, s.sessionID, "text", fmt.Sprintf("response_%s.txt", fileTimestamp()))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to save text response: %w", err)
	}
	return path, nil
}

// SaveAudio writes synthesized reply audio and returns its path.
func (s *ResponseStore) SaveAudio(data []byte, format audio.Format) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("response_%s.%s", fileTimestamp(), format.Ext())
	path := filepath.Join(s.baseDir, s.sessionID, "audio", name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save audio response: %w", err)
	}
	return path, nil
}

// SaveExchange persists text, optional audio, and a metadata document
// for one completed exchange.
func (s *ResponseStore) SaveExchange(transcript, reply string, replyAudio []byte, format audio.Format) (ResponseMetadata, error) {
	meta := ResponseMetadata{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Transcript: transcript,
	}

	textPath, err := s.SaveText(reply)
	if err != nil {
		return meta, err
	}
	meta.TextPath = textPath

	if len(replyAudio) > 0 {
		audioPath, err := s.SaveAudio(replyAudio, format)
		if err != nil {
			return meta, err
		}
		meta.AudioPath = audioPath
		meta.AudioSize = len(replyAudio)
		meta.Format = format.String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	metaPath := filepath.Join(s.baseDir, s.sessionID, fmt.Sprintf("metadata_%s.json", fileTimestamp()))
	doc, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return meta, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, doc, 0o644); err != nil {
		return meta, fmt.Errorf("failed to save metadata: %w", err)
	}

	s.logger.Info("Saved exchange",
		zap.String("session", s.sessionID),
		zap.String("text", textPath),
		zap.String("audio", meta.AudioPath))
	return meta, nil
}

// SessionSummary describes one stored session for the listing API.
type SessionSummary struct {
	ID         string `json:"id"`
	AudioCount int    `json:"audio_count"`
	TextCount  int    `json:"text_count"`
	CreatedAt  string `json:"created_at"`
}

// SessionResponse pairs the nth saved text/audio/metadata files.
type SessionResponse struct {
	Index    int    `json:"index"`
	Audio    string `json:"audio,omitempty"`
	Text     string `json:"text,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// SessionDetail is the full browse view of one session.
type SessionDetail struct {
	SessionID  string            `json:"session_id"`
	Responses  []SessionResponse `json:"responses"`
	AudioCount int               `json:"audio_count"`
	TextCount  int               `json:"text_count"`
}

// Library reads stored sessions for the browse API.
type Library struct {
	baseDir string
}

// NewLibrary points at the same base directory the store writes to.
func NewLibrary(baseDir string) *Library {
	return &Library{baseDir: baseDir}
}

func listNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// ListSessions returns all stored sessions, newest first.
func (l *Library) ListSessions() ([]SessionSummary, error) {
	entries, err := os.ReadDir(l.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read responses dir: %w", err)
	}

	sessions := make([]SessionSummary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		sessions = append(sessions, SessionSummary{
			ID:         id,
			AudioCount: len(listNames(filepath.Join(l.baseDir, id, "audio"))),
			TextCount:  len(listNames(filepath.Join(l.baseDir, id, "text"))),
			CreatedAt:  strings.SplitN(id, "_", 2)[0],
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

// GetSession returns the detailed view of one session, or nil when it
// does not exist.
func (l *Library) GetSession(sessionID string) (*SessionDetail, error) {
	dir, err := l.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat session dir: %w", err)
	}

	audioFiles := listNames(filepath.Join(dir, "audio"))
	textFiles := listNames(filepath.Join(dir, "text"))
	var metaFiles []string
	for _, name := range listNames(dir) {
		if strings.HasPrefix(name, "metadata_") && strings.HasSuffix(name, ".json") {
			metaFiles = append(metaFiles, name)
		}
	}

	n := len(audioFiles)
	if len(textFiles) > n {
		n = len(textFiles)
	}
	detail := &SessionDetail{
		SessionID:  sessionID,
		Responses:  make([]SessionResponse, 0, n),
		AudioCount: len(audioFiles),
		TextCount:  len(textFiles),
	}
	for i := 0; i < n; i++ {
		r := SessionResponse{Index: i + 1}
		if i < len(audioFiles) {
			r.Audio = audioFiles[i]
		}
		if i < len(textFiles) {
			r.Text = textFiles[i]
		}
		if i < len(metaFiles) {
			r.Metadata = metaFiles[i]
		}
		detail.Responses = append(detail.Responses, r)
	}
	return detail, nil
}

// ReadText returns a stored text response.
func (l *Library) ReadText(sessionID, filename string) ([]byte, error) {
	return l.readFile(sessionID, filepath.Join("text", filename))
}

// ReadAudio returns a stored audio response and its media type.
func (l *Library) ReadAudio(sessionID, filename string) ([]byte, string, error) {
	data, err := l.readFile(sessionID, filepath.Join("audio", filename))
	if err != nil {
		return nil, "", err
	}
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return data, audio.FormatFromExt(ext).MIMEType(), nil
}

// ReadMetadata returns a stored metadata document.
func (l *Library) ReadMetadata(sessionID, filename string) (ResponseMetadata, error) {
	var meta ResponseMetadata
	data, err := l.readFile(sessionID, filename)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

// ErrOutsideLibrary is returned for paths that escape the base dir.
var ErrOutsideLibrary = fmt.Errorf("path escapes response library")

func (l *Library) sessionDir(sessionID string) (string, error) {
	dir := filepath.Join(l.baseDir, sessionID)
	base, err := filepath.Abs(l.baseDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return "", ErrOutsideLibrary
	}
	return dir, nil
}

func (l *Library) readFile(sessionID, rel string) ([]byte, error) {
	dir, err := l.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, rel)
	base, err := filepath.Abs(filepath.Join(l.baseDir, sessionID))
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return nil, ErrOutsideLibrary
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read response file: %w", err)
	}
	return data, nil
}
