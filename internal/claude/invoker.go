// Package claude runs the Claude CLI as a supervised subprocess. Each call
// owns exactly one process session: the process, its output buffers and its
// kill timer live and die together.
package claude

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/irsiksoftware/ladderbot/internal/logging"
)

// DefaultTimeout is how long a session may run before it is killed.
const DefaultTimeout = 120 * time.Second

// DefaultPreamble is prepended to every question so the CLI answers in
// project context.
const DefaultPreamble = `[Context: NeonLadder - a 2.5D roguelite platformer Unity game]
You are a Unity game development expert helping with NeonLadder development. Provide concise, actionable advice.`

// noOutputPlaceholder is returned when a successful run produces no text.
const noOutputPlaceholder = "no output"

// ErrTimeout is returned when the subprocess is killed by the session timer.
// Partial output captured before the kill is discarded.
var ErrTimeout = errors.New("claude CLI timed out after 120 seconds")

// ExitError is returned when the subprocess exits with a non-zero code.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("claude CLI exited with code %d: %s", e.Code, e.Stderr)
}

// Config holds invoker settings.
type Config struct {
	Command    string        // CLI executable, defaults to "claude"
	Timeout    time.Duration // defaults to DefaultTimeout
	Preamble   string        // defaults to DefaultPreamble
	Transcript string        // session log path, empty disables transcripts
}

// Invoker spawns Claude CLI subprocesses. It is safe for concurrent use;
// every Ask call runs its own independently timed process.
type Invoker struct {
	command    string
	timeout    time.Duration
	preamble   string
	transcript *transcriptLog
	log        *slog.Logger
}

// NewInvoker creates an invoker from config, applying defaults for any
// unset field.
func NewInvoker(cfg *Config) *Invoker {
	if cfg == nil {
		cfg = &Config{}
	}
	iv := &Invoker{
		command:  cfg.Command,
		timeout:  cfg.Timeout,
		preamble: cfg.Preamble,
		log:      logging.WithComponent("claude.invoker"),
	}
	if iv.command == "" {
		iv.command = "claude"
	}
	if iv.timeout == 0 {
		iv.timeout = DefaultTimeout
	}
	if iv.preamble == "" {
		iv.preamble = DefaultPreamble
	}
	if cfg.Transcript != "" {
		iv.transcript = newTranscriptLog(cfg.Transcript)
	}
	return iv
}

// IsAvailable checks whether the CLI executable is installed.
func (iv *Invoker) IsAvailable() bool {
	_, err := exec.LookPath(iv.command)
	return err == nil
}

// Ask runs one question through the CLI and returns the cleaned response.
// The prompt is written to the subprocess over stdin and the stream closed
// before output is awaited. Exactly one of four outcomes occurs: success,
// non-zero exit (ExitError with captured stderr), launch failure, or
// ErrTimeout once the internal timer kills the process.
//
// Abandoning the call does not kill the subprocess; only the session timer
// does.
func (iv *Invoker) Ask(question string) (string, error) {
	prompt := iv.preamble + "\n\n" + question
	start := time.Now()
	session := newSession(prompt)

	cmd := exec.Command(iv.command)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to spawn claude CLI: %w", err)
	}
	iv.log.Debug("Claude CLI started",
		slog.Int("pid", cmd.Process.Pid),
		slog.Int("prompt_bytes", len(prompt)))

	// Deliver the full prompt before waiting for output. Closing stdin
	// signals EOF so the CLI starts answering.
	go func() {
		_, _ = io.WriteString(stdin, prompt)
		_ = stdin.Close()
	}()

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go iv.readStream(&wg, stdout, &outBuf, session, streamStdout)
	go iv.readStream(&wg, stderr, &errBuf, session, streamStderr)

	var timedOut atomic.Bool
	timer := time.AfterFunc(iv.timeout, func() {
		timedOut.Store(true)
		_ = cmd.Process.Kill()
	})

	wg.Wait()
	waitErr := cmd.Wait()
	timer.Stop()
	duration := time.Since(start)

	if timedOut.Load() {
		session.finish(-1, duration)
		iv.appendTranscript(session)
		iv.log.Warn("Claude CLI killed by session timer",
			slog.Int("pid", cmd.Process.Pid),
			slog.Duration("timeout", iv.timeout))
		return "", ErrTimeout
	}

	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		session.finish(code, duration)
		iv.appendTranscript(session)
		return "", &ExitError{Code: code, Stderr: strings.TrimSpace(errBuf.String())}
	}

	session.finish(0, duration)
	iv.appendTranscript(session)

	text := CleanOutput(outBuf.String())
	if text == "" {
		text = noOutputPlaceholder
	}

	iv.log.Debug("Claude CLI completed",
		slog.Duration("duration", duration),
		slog.Int("response_bytes", len(text)))
	return text, nil
}

// readStream copies a process stream into buf, recording each chunk in the
// session transcript as it arrives.
func (iv *Invoker) readStream(wg *sync.WaitGroup, r io.Reader, buf *bytes.Buffer, session *session, stream string) {
	defer wg.Done()

	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			session.record(stream, chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

// appendTranscript writes the session to the transcript log. Logging
// failures never fail the invocation.
func (iv *Invoker) appendTranscript(s *session) {
	if iv.transcript == nil {
		return
	}
	if err := iv.transcript.append(s); err != nil {
		iv.log.Warn("Failed to write session transcript", slog.Any("error", err))
	}
}

var (
	ansiPattern    = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	newlinePattern = regexp.MustCompile(`[\r\n]+`)
)

// CleanOutput strips ANSI escape sequences, collapses runs of line breaks
// into single breaks, and trims surrounding whitespace.
func CleanOutput(raw string) string {
	out := ansiPattern.ReplaceAllString(raw, "")
	out = newlinePattern.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}
