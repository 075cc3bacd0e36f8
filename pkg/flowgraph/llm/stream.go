package llm

import (
	"context"
	"iter"
	"sync"
)

// Stream is an opened fragment stream. Open pulls the first chunk eagerly so
// connection failures surface at open time; the remaining fragments are
// pulled on demand. A Stream is single-pass and must be closed.
type Stream struct {
	next func() (StreamChunk, error, bool)
	stop func()

	head     StreamChunk
	headOK   bool
	consumed bool

	closeOnce sync.Once
}

// Open starts req on client and waits for its first chunk.
// An error here means no fragment was produced.
func Open(ctx context.Context, client Client, req CompletionRequest) (*Stream, error) {
	next, stop := iter.Pull2(client.Stream(ctx, req))
	chunk, err, ok := next()
	if err != nil {
		stop()
		return nil, err
	}
	return &Stream{next: next, stop: stop, head: chunk, headOK: ok}, nil
}

// All yields non-empty fragments in provider order, starting with the
// primed head. The first error ends iteration. Calling All a second time
// yields nothing.
func (s *Stream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s == nil || s.consumed {
			return
		}
		s.consumed = true
		defer s.Close()

		if !s.headOK {
			return
		}
		if s.head.Content != "" && !yield(s.head.Content, nil) {
			return
		}
		for {
			chunk, err, ok := s.next()
			if !ok {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if chunk.Content == "" {
				continue
			}
			if !yield(chunk.Content, nil) {
				return
			}
		}
	}
}

// Close releases the underlying provider stream. It is safe to call more
// than once and on a nil Stream.
func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(s.stop)
}

// StreamOf returns an already-opened Stream over fixed fragments.
func StreamOf(fragments ...string) *Stream {
	s, _ := Open(context.Background(), fixedClient(fragments), CompletionRequest{})
	return s
}

type fixedClient []string

func (fixedClient) Complete(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{}, nil
}

func (f fixedClient) Stream(context.Context, CompletionRequest) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		for _, frag := range f {
			if !yield(StreamChunk{Content: frag}, nil) {
				return
			}
		}
	}
}
