// Package delivery splits long text into platform-safe message segments and
// paces their delivery. Every long response in the bot (AI answers, fetched
// READMEs) goes through the same protocol.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/irsiksoftware/ladderbot/internal/logging"
)

const (
	// MaxSegmentLength stays safely under Discord's 2000-character message
	// ceiling.
	MaxSegmentLength = 1900

	// MaxSegments caps how many content segments one response may produce.
	MaxSegments = 5

	// PacingDelay is inserted between consecutive segment sends to respect
	// platform rate limits.
	PacingDelay = 500 * time.Millisecond
)

// Sink accepts ordered text segments.
type Sink interface {
	Send(ctx context.Context, segment string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, segment string) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, segment string) error {
	return f(ctx, segment)
}

// Options adjusts a single delivery.
type Options struct {
	// Header is prepended to short responses and announced as its own
	// segment before paginated ones.
	Header string

	// OverflowURL points at the full content when it exceeds MaxSegments
	// chunks.
	OverflowURL string
}

// Deliverer sends text through a Sink, chunking and pacing as needed.
type Deliverer struct {
	sleep func(ctx context.Context, d time.Duration) error
	log   *slog.Logger
}

// New creates a Deliverer.
func New() *Deliverer {
	return &Deliverer{
		sleep: sleepContext,
		log:   logging.WithComponent("delivery"),
	}
}

// Deliver emits text through sink. Text at or under MaxSegmentLength goes
// out as one segment (header prefixed when set). Longer text is split into
// contiguous chunks of at most MaxSegmentLength characters, preceded by a
// header segment and paced by PacingDelay. At most MaxSegments chunks are
// sent; anything beyond is replaced by a single pointer segment referencing
// OverflowURL.
func (d *Deliverer) Deliver(ctx context.Context, text string, sink Sink, opts Options) error {
	if len(text) <= MaxSegmentLength {
		segment := text
		if opts.Header != "" {
			segment = opts.Header + "\n\n" + text
		}
		return sink.Send(ctx, segment)
	}

	header := opts.Header
	if header == "" {
		header = "Response"
	}
	if err := sink.Send(ctx, header+" (Part 1)"); err != nil {
		return err
	}

	chunks := Chunk(text)
	truncated := len(chunks) > MaxSegments
	if truncated {
		chunks = chunks[:MaxSegments]
	}

	d.log.Debug("Delivering chunked response",
		slog.Int("total_bytes", len(text)),
		slog.Int("segments", len(chunks)),
		slog.Bool("truncated", truncated))

	for _, chunk := range chunks {
		if err := d.sleep(ctx, PacingDelay); err != nil {
			return err
		}
		if err := sink.Send(ctx, chunk); err != nil {
			return err
		}
	}

	if truncated {
		if err := d.sleep(ctx, PacingDelay); err != nil {
			return err
		}
		pointer := "\n... Response is too long."
		if opts.OverflowURL != "" {
			pointer = fmt.Sprintf("\n... Response is too long. View the full content: %s", opts.OverflowURL)
		}
		return sink.Send(ctx, pointer)
	}

	return nil
}

// Chunk splits text into contiguous, non-overlapping substrings of at most
// MaxSegmentLength characters, preserving original byte order. Splits may
// fall mid-word.
func Chunk(text string) []string {
	if len(text) <= MaxSegmentLength {
		return []string{text}
	}

	var chunks []string
	for len(text) > MaxSegmentLength {
		chunks = append(chunks, text[:MaxSegmentLength])
		text = text[MaxSegmentLength:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
