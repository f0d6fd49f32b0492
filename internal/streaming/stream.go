// Package streaming converts a blocking token producer into a bounded,
// non-blocking stream a concurrent consumer can drain without stalling its
// scheduler goroutine.
package streaming

import (
	"context"
	"io"
	"strings"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

// DefaultBuffer is the relay channel capacity. A full channel blocks the
// producing worker; tokens are never dropped and the producer never runs
// unbounded ahead of the consumer.
const DefaultBuffer = 32

type eventKind int

const (
	eventToken eventKind = iota
	eventEnd
	eventFailure
)

// event is the tagged union carried on the relay channel. A separate kind
// field keeps a legitimate empty-string token distinguishable from
// termination.
type event struct {
	kind  eventKind
	token string
	err   error
}

// Producer runs the blocking generation call. It must invoke yield once per
// token, stop when yield returns false, and return the terminal error (nil on
// normal exhaustion).
type Producer func(yield func(token string) bool) error

// Stream relays tokens from a dedicated worker goroutine to one consumer.
// Tokens arrive in production order; the stream terminates with either a
// normal end or a failure, never both.
type Stream struct {
	ch        chan event
	stopTag   string
	finished  bool
	truncated bool
}

type Option func(*Stream)

// WithStopTag truncates generation when a produced token contains the given
// literal. Models occasionally start simulating the other speaker; the tag
// marks that boundary. Truncation is a normal completion, not a failure.
func WithStopTag(tag string) Option {
	return func(s *Stream) {
		s.stopTag = tag
	}
}

func WithBuffer(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.ch = make(chan event, n)
		}
	}
}

// Start launches the worker that owns the blocking producer call. Nothing else
// may drive the same model handle while the stream is live.
func Start(produce Producer, opts ...Option) *Stream {
	s := &Stream{
		ch: make(chan event, DefaultBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run(produce)
	return s
}

func (s *Stream) run(produce Producer) {
	truncated := false
	err := produce(func(token string) bool {
		if truncated {
			return false
		}
		if s.stopTag != "" && strings.Contains(token, s.stopTag) {
			// Leak guard: drop this token and everything after it.
			truncated = true
			return false
		}
		s.ch <- event{kind: eventToken, token: token}
		return true
	})

	if err != nil && !truncated {
		s.ch <- event{kind: eventFailure, err: err}
		return
	}
	s.truncated = truncated
	s.ch <- event{kind: eventEnd}
}

// Truncated reports whether the leak guard cut generation short. Meaningful
// once Next has returned io.EOF; the channel receive orders the read.
func (s *Stream) Truncated() bool {
	return s.truncated
}

// Next blocks until the next token is relayed. It returns io.EOF after the
// last token of a normally completed stream and the producer's error, wrapped
// as a stream failure, when generation failed. Terminal markers are consumed
// internally and never returned as content.
func (s *Stream) Next(ctx context.Context) (string, error) {
	if s.finished {
		return "", io.EOF
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case ev := <-s.ch:
		switch ev.kind {
		case eventToken:
			return ev.token, nil
		case eventFailure:
			s.finished = true
			return "", domain.WrapError(domain.ErrStreamFailure, "token stream", ev.err)
		default:
			s.finished = true
			return "", io.EOF
		}
	}
}

// Drain collects the remaining tokens. Mostly a test and naming-path helper;
// the chat path consumes token by token.
func (s *Stream) Drain(ctx context.Context) ([]string, error) {
	var out []string
	for {
		token, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, token)
	}
}
