package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const localSynthesisTimeout = 30 * time.Second

// LocalTTS shells out to an on-host synthesis command (espeak-ng,
// flite, piper and the like). The command receives the text on stdin
// and must write a WAV file to the path given as its last argument.
// Offline fallback for deployments without a hosted TTS account.
type LocalTTS struct {
	command string
	args    []string
	workDir string
	logger  *zap.Logger
}

// NewLocalTTS builds a local synthesizer. command is the binary name,
// args are passed before the output path. An empty command disables
// the adapter with an error at construction rather than at first use.
func NewLocalTTS(command string, args []string, workDir string, logger *zap.Logger) (*LocalTTS, error) {
	if command == "" {
		return nil, fmt.Errorf("local TTS command is required")
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("local TTS command %q not found: %w", command, err)
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &LocalTTS{
		command: command,
		args:    args,
		workDir: workDir,
		logger:  logger,
	}, nil
}

func (l *LocalTTS) Name() string { return "local:" + l.command }

func (l *LocalTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, localSynthesisTimeout)
	defer cancel()

	outPath := filepath.Join(l.workDir, fmt.Sprintf("tts-%s.wav", uuid.New().String()))
	defer os.Remove(outPath)

	args := append(append([]string{}, l.args...), outPath)
	cmd := exec.CommandContext(ctx, l.command, args...)
	cmd.Stdin = strings.NewReader(text)

	start := time.Now()
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("local synthesis command failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	audio, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("local synthesis produced no output file: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("local synthesis produced an empty file")
	}

	l.logger.Info("Synthesized reply audio locally",
		zap.String("command", l.command),
		zap.Int("audioBytes", len(audio)),
		zap.Duration("elapsed", time.Since(start)))

	return audio, nil
}
