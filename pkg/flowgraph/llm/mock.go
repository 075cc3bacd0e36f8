package llm

import (
	"context"
	"iter"
	"strings"
	"sync"
)

// StreamScript scripts one Stream call on MockClient.
type StreamScript struct {
	// OpenErr is yielded before any fragment.
	OpenErr error

	// Fragments are yielded in order.
	Fragments []string

	// Err, if set, is yielded after Fragments.
	Err error
}

// MockClient is a deterministic Client for tests.
//
// Complete returns the configured responses in order, cycling. Stream uses
// the configured scripts in order, repeating the last one; without scripts
// it streams the next response split after spaces.
type MockClient struct {
	mu sync.Mutex

	responses []string
	index     int
	err       error

	scripts     []StreamScript
	streamIndex int

	completeFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Calls records Complete requests; StreamCalls records Stream requests.
	Calls       []CompletionRequest
	StreamCalls []CompletionRequest
}

// NewMockClient returns a mock that always answers response.
func NewMockClient(response string) *MockClient {
	return &MockClient{responses: []string{response}}
}

// WithResponses sets the sequence of Complete replies.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.index = 0
	return m
}

// WithError makes Complete fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithStreams sets per-call Stream scripts.
func (m *MockClient) WithStreams(scripts ...StreamScript) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = scripts
	m.streamIndex = 0
	return m
}

// WithCompleteFunc overrides Complete entirely.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn, err := m.completeFunc, m.err
	var content string
	if fn == nil && err == nil {
		content = m.nextResponseLocked()
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return &CompletionResponse{Content: content, Model: req.Model, FinishReason: "stop"}, nil
}

// Stream implements Client. The script is chosen when iteration starts.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		script := m.nextScript(req)
		if script.OpenErr != nil {
			yield(StreamChunk{}, script.OpenErr)
			return
		}
		for _, frag := range script.Fragments {
			if err := ctx.Err(); err != nil {
				yield(StreamChunk{}, err)
				return
			}
			if !yield(StreamChunk{Content: frag}, nil) {
				return
			}
		}
		if script.Err != nil {
			yield(StreamChunk{}, script.Err)
			return
		}
		yield(StreamChunk{Done: true}, nil)
	}
}

func (m *MockClient) nextScript(req CompletionRequest) StreamScript {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamCalls = append(m.StreamCalls, req)
	if len(m.scripts) == 0 {
		return StreamScript{Fragments: strings.SplitAfter(m.nextResponseLocked(), " ")}
	}
	i := m.streamIndex
	if i >= len(m.scripts) {
		i = len(m.scripts) - 1
	}
	m.streamIndex++
	return m.scripts[i]
}

func (m *MockClient) nextResponseLocked() string {
	if len(m.responses) == 0 {
		return ""
	}
	content := m.responses[m.index%len(m.responses)]
	m.index++
	return content
}

// CallCount returns the number of Complete calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// StreamCallCount returns the number of Stream iterations started.
func (m *MockClient) StreamCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.StreamCalls)
}

// LastCall returns the most recent Complete request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}

// LastStreamCall returns the most recent Stream request, or nil.
func (m *MockClient) LastStreamCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.StreamCalls) == 0 {
		return nil
	}
	return &m.StreamCalls[len(m.StreamCalls)-1]
}

// Reset clears recorded calls and rewinds responses and scripts.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.StreamCalls = nil
	m.index = 0
	m.streamIndex = 0
}

var _ Client = (*MockClient)(nil)
