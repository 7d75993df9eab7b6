package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// recordingSink captures every delivered segment.
type recordingSink struct {
	segments []string
	failAt   int // 1-based index to fail on, 0 disables
}

func (s *recordingSink) Send(ctx context.Context, segment string) error {
	s.segments = append(s.segments, segment)
	if s.failAt > 0 && len(s.segments) == s.failAt {
		return errors.New("sink failure")
	}
	return nil
}

// newTestDeliverer disables pacing so tests run instantly.
func newTestDeliverer() *Deliverer {
	d := New()
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

func TestDeliverShortTextSingleSegment(t *testing.T) {
	d := newTestDeliverer()
	sink := &recordingSink{}

	text := strings.Repeat("a", MaxSegmentLength)
	if err := d.Deliver(context.Background(), text, sink, Options{}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(sink.segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(sink.segments))
	}
	if sink.segments[0] != text {
		t.Error("short text altered in transit")
	}
}

func TestDeliverShortTextWithHeader(t *testing.T) {
	d := newTestDeliverer()
	sink := &recordingSink{}

	if err := d.Deliver(context.Background(), "body", sink, Options{Header: "📄 README"}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(sink.segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(sink.segments))
	}
	if sink.segments[0] != "📄 README\n\nbody" {
		t.Errorf("segment = %q", sink.segments[0])
	}
}

func TestDeliverChunksReconstructText(t *testing.T) {
	d := newTestDeliverer()
	sink := &recordingSink{}

	// 2.5 chunks worth of text: header + 3 content segments.
	text := strings.Repeat("x", MaxSegmentLength*2+950)
	if err := d.Deliver(context.Background(), text, sink, Options{Header: "📄 README"}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if len(sink.segments) != 4 {
		t.Fatalf("expected header + 3 chunks, got %d segments", len(sink.segments))
	}
	if !strings.HasPrefix(sink.segments[0], "📄 README") {
		t.Errorf("header segment = %q", sink.segments[0])
	}
	if got := strings.Join(sink.segments[1:], ""); got != text {
		t.Error("chunk concatenation does not reconstruct original text")
	}
	for i, seg := range sink.segments[1:] {
		if len(seg) > MaxSegmentLength {
			t.Errorf("chunk %d exceeds limit: %d", i, len(seg))
		}
	}
}

func TestDeliverTruncatesAtFiveChunks(t *testing.T) {
	d := newTestDeliverer()
	sink := &recordingSink{}

	text := strings.Repeat("y", MaxSegmentLength*7)
	url := "https://github.com/irsiksoftware/NeonLadder#readme"
	if err := d.Deliver(context.Background(), text, sink, Options{OverflowURL: url}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	// header + 5 content chunks + pointer
	if len(sink.segments) != 7 {
		t.Fatalf("expected 7 segments, got %d", len(sink.segments))
	}

	content := strings.Join(sink.segments[1:6], "")
	if content != text[:MaxSegmentLength*5] {
		t.Error("content segments altered")
	}
	if strings.Contains(sink.segments[6], "y") {
		t.Error("content leaked past the fifth chunk")
	}
	if !strings.Contains(sink.segments[6], url) {
		t.Errorf("pointer segment missing URL: %q", sink.segments[6])
	}
}

func TestDeliverStopsOnSinkError(t *testing.T) {
	d := newTestDeliverer()
	sink := &recordingSink{failAt: 2}

	text := strings.Repeat("z", MaxSegmentLength*3)
	if err := d.Deliver(context.Background(), text, sink, Options{}); err == nil {
		t.Fatal("expected sink error")
	}
	if len(sink.segments) != 2 {
		t.Errorf("delivery continued after failure: %d segments", len(sink.segments))
	}
}

func TestDeliverHonorsContextCancellation(t *testing.T) {
	d := New() // real pacing so cancellation lands in the sleep
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	text := strings.Repeat("w", MaxSegmentLength*2)
	if err := d.Deliver(ctx, text, sink, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"empty", 0, 1},
		{"exactly one chunk", MaxSegmentLength, 1},
		{"one byte over", MaxSegmentLength + 1, 2},
		{"five chunks exactly", MaxSegmentLength * 5, 5},
		{"uneven tail", MaxSegmentLength*2 + 7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("q", tt.length)
			chunks := Chunk(text)
			if len(chunks) != tt.want {
				t.Fatalf("Chunk() produced %d chunks, want %d", len(chunks), tt.want)
			}
			if strings.Join(chunks, "") != text {
				t.Error("chunks do not reconstruct input")
			}
		})
	}
}
