package claude

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	streamStdout = "stdout"
	streamStderr = "stderr"

	chunkPreviewLength = 80
)

// session accumulates the transcript of one subprocess invocation. Chunks
// are append-only until finish is called, after which the session is
// immutable.
type session struct {
	id        string
	startedAt time.Time
	prompt    string

	mu       sync.Mutex
	chunks   []chunkRecord
	exitCode int
	duration time.Duration
	done     bool
}

type chunkRecord struct {
	stream  string
	length  int
	preview string
}

func newSession(prompt string) *session {
	return &session{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		prompt:    prompt,
		exitCode:  -1,
	}
}

func (s *session) record(stream string, data []byte) {
	preview := string(data)
	if len(preview) > chunkPreviewLength {
		preview = preview[:chunkPreviewLength]
	}
	preview = strings.ReplaceAll(preview, "\n", "\\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.chunks = append(s.chunks, chunkRecord{
		stream:  stream,
		length:  len(data),
		preview: preview,
	})
}

func (s *session) finish(exitCode int, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.exitCode = exitCode
	s.duration = duration
}

// render formats the session as a transcript block.
func (s *session) render() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "=== session %s at %s ===\n", s.id, s.startedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "prompt (%d bytes):\n%s\n", len(s.prompt), s.prompt)
	for _, c := range s.chunks {
		fmt.Fprintf(&b, "[%s] %d bytes: %q\n", c.stream, c.length, c.preview)
	}
	fmt.Fprintf(&b, "exit code: %d\n", s.exitCode)
	fmt.Fprintf(&b, "duration: %s\n\n", s.duration.Round(time.Millisecond))
	return b.String()
}

// transcriptLog appends session transcripts to a single file for post-hoc
// debugging.
type transcriptLog struct {
	path string
	mu   sync.Mutex
}

func newTranscriptLog(path string) *transcriptLog {
	return &transcriptLog{path: path}
}

func (t *transcriptLog) append(s *session) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(s.render()); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
