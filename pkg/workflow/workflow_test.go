package workflow

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph"
	fgerrors "github.com/randalmurphal/codecanvas/pkg/flowgraph/errors"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
)

// sleepRecorder is a Sleeper that records delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestWorkflow(t *testing.T, client llm.Client, opts ...Option) (*Workflow, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	wf, err := New(client, append([]Option{WithSleeper(rec.sleep)}, opts...)...)
	require.NoError(t, err)
	return wf, rec
}

// drainOutput concatenates the framed output and returns the first error.
func drainOutput(seq iter.Seq2[string, error]) (string, []string, error) {
	var b strings.Builder
	var chunks []string
	for chunk, err := range seq {
		if err != nil {
			return b.String(), chunks, err
		}
		b.WriteString(chunk)
		chunks = append(chunks, chunk)
	}
	return b.String(), chunks, nil
}

func finalState(t *testing.T, wf *Workflow, req Request) State {
	t.Helper()
	var last flowgraph.Step[State]
	for step, err := range wf.Steps(context.Background(), req) {
		require.NoError(t, err)
		last = step
	}
	require.True(t, last.Terminal())
	return last.State
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestGenerate_CodeRequest(t *testing.T) {
	mock := llm.NewMockClient("code_generation").WithStreams(llm.StreamScript{
		Fragments: []string{"<button ", "className=\"red\">", "Click</button>"},
	})
	wf, rec := newTestWorkflow(t, mock, WithModel("gemini-2.5-flash"))

	out, chunks, err := drainOutput(wf.Generate(context.Background(), Request{
		Prompt:    "make a red button",
		Framework: FrameworkReact,
	}))
	require.NoError(t, err)
	assert.Equal(t, "CODE:<button className=\"red\">Click</button>", out)
	assert.Equal(t, MarkerCode, chunks[0])
	assert.Empty(t, rec.recorded())

	classify := mock.LastCall()
	require.NotNil(t, classify)
	assert.Equal(t, 0.0, classify.Temperature)
	assert.Contains(t, classify.Messages[0].Content, "User prompt: make a red button")
	assert.Contains(t, classify.Messages[0].Content, "Image provided: false")

	gen := mock.LastStreamCall()
	require.NotNil(t, gen)
	assert.Equal(t, 0.2, gen.Temperature)
	assert.Equal(t, "gemini-2.5-flash", gen.Model)
	assert.Contains(t, gen.SystemPrompt, "Framework: **REACT**")
	require.Len(t, gen.Messages, 1)
	assert.Equal(t, []llm.Part{llm.TextPart("make a red button")}, gen.Messages[0].Parts)
}

func TestGenerate_ChatRequest(t *testing.T) {
	mock := llm.NewMockClient("chat").WithStreams(llm.StreamScript{
		Fragments: []string{"It ", "renders ", "JSX."},
	})
	wf, _ := newTestWorkflow(t, mock)

	history := []Turn{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: "system", Content: "ignored"},
	}
	out, _, err := drainOutput(wf.Generate(context.Background(), Request{
		Prompt:  "how does this work?",
		History: history,
	}))
	require.NoError(t, err)
	assert.Equal(t, "CHAT:It renders JSX.", out)

	req := mock.LastStreamCall()
	require.NotNil(t, req)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Empty(t, req.SystemPrompt)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hi"}, req.Messages[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "hello"}, req.Messages[1])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "how does this work?"}, req.Messages[2])
	assert.Len(t, history, 3, "history must not be mutated")
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	overloaded := llm.StreamScript{OpenErr: errors.New("503 overloaded")}
	mock := llm.NewMockClient("code_generation").WithStreams(
		overloaded,
		overloaded,
		llm.StreamScript{Fragments: []string{"<div/>"}},
	)
	wf, rec := newTestWorkflow(t, mock)

	out, _, err := drainOutput(wf.Generate(context.Background(), Request{Prompt: "make a card"}))
	require.NoError(t, err)
	assert.Equal(t, "CODE:<div/>", out)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())
	assert.Equal(t, 3, mock.StreamCallCount())

	mock.Reset()
	s := finalState(t, wf, Request{Prompt: "make a card"})
	assert.Equal(t, 2, s.RetryCount)
	assert.Empty(t, s.ErrorMessage)
	require.NotNil(t, s.CodeOutput)
	s.CodeOutput.Close()
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	mock := llm.NewMockClient("code_generation").WithStreams(
		llm.StreamScript{OpenErr: errors.New("503 overloaded")},
	)
	wf, rec := newTestWorkflow(t, mock)

	out, _, err := drainOutput(wf.Generate(context.Background(), Request{Prompt: "make a card"}))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: An error occurred: 503 overloaded", out)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.recorded())
	assert.Equal(t, 4, mock.StreamCallCount(), "one attempt plus three retries")

	mock.Reset()
	s := finalState(t, wf, Request{Prompt: "make a card"})
	assert.Equal(t, 3, s.RetryCount)
	assert.Equal(t, "An error occurred: 503 overloaded", s.TerminalError())
}

func TestGenerate_NonRetryableFailure(t *testing.T) {
	mock := llm.NewMockClient("code_generation").WithStreams(
		llm.StreamScript{OpenErr: errors.New("invalid request")},
	)
	wf, rec := newTestWorkflow(t, mock)

	out, _, err := drainOutput(wf.Generate(context.Background(), Request{Prompt: "make a card"}))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: An error occurred: invalid request", out)
	assert.Empty(t, rec.recorded())
	assert.Equal(t, 1, mock.StreamCallCount())

	mock.Reset()
	assert.Equal(t, 0, finalState(t, wf, Request{Prompt: "make a card"}).RetryCount)
}

func TestGenerate_ProviderCategoryOverridesText(t *testing.T) {
	t.Run("permanent despite transient wording", func(t *testing.T) {
		mock := llm.NewMockClient("code_generation").WithStreams(
			llm.StreamScript{OpenErr: fgerrors.Permanent(errors.New("upstream timeout"), "")},
		)
		wf, rec := newTestWorkflow(t, mock)

		out, _, err := drainOutput(wf.Generate(context.Background(), Request{Prompt: "make a card"}))
		require.NoError(t, err)
		assert.Equal(t, "ERROR: An error occurred: upstream timeout", out)
		assert.Empty(t, rec.recorded())
		assert.Equal(t, 1, mock.StreamCallCount())
	})

	t.Run("throttled without transient wording", func(t *testing.T) {
		throttled := fgerrors.ClassifyHTTP(&fgerrors.HTTPError{StatusCode: 429, Message: "Too Many Requests"})
		mock := llm.NewMockClient("code_generation").WithStreams(
			llm.StreamScript{OpenErr: throttled},
			llm.StreamScript{Fragments: []string{"<div/>"}},
		)
		wf, rec := newTestWorkflow(t, mock)

		out, _, err := drainOutput(wf.Generate(context.Background(), Request{Prompt: "make a card"}))
		require.NoError(t, err)
		assert.Equal(t, "CODE:<div/>", out)
		assert.Equal(t, []time.Duration{time.Second}, rec.recorded())
		assert.Equal(t, 2, mock.StreamCallCount())
	})
}

func TestGenerate_ClassifierFailureFailsOpen(t *testing.T) {
	mock := llm.NewMockClient("").
		WithError(errors.New("503 overloaded")).
		WithStreams(llm.StreamScript{Fragments: []string{"Sure."}})
	wf, _ := newTestWorkflow(t, mock)

	out, _, err := drainOutput(wf.Generate(context.Background(), Request{Prompt: "make a red button"}))
	require.NoError(t, err)
	assert.Equal(t, "CHAT:Sure.", out)
}

func TestGenerate_ChatOpenFailure(t *testing.T) {
	mock := llm.NewMockClient("chat").WithStreams(llm.StreamScript{OpenErr: errors.New("permission denied")})
	wf, rec := newTestWorkflow(t, mock)

	out, _, err := drainOutput(wf.Generate(context.Background(), Request{Prompt: "hello"}))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: permission denied", out)
	assert.Empty(t, rec.recorded(), "chat failures are not retried")
}

func TestGenerate_MidStreamFailureIsNotFramedAsText(t *testing.T) {
	cause := errors.New("connection reset")
	mock := llm.NewMockClient("code_generation").WithStreams(llm.StreamScript{
		Fragments: []string{"<div>", "half"},
		Err:       cause,
	})
	wf, _ := newTestWorkflow(t, mock)

	out, chunks, err := drainOutput(wf.Generate(context.Background(), Request{Prompt: "make a card"}))
	require.Error(t, err)
	assert.Equal(t, "CODE:<div>half", out)
	assert.Equal(t, []string{MarkerCode, "<div>", "half"}, chunks)

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, MarkerCode, streamErr.Marker)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, out, "ERROR:")
}

func TestGenerate_ImageIsSentAsPNG(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	mock := llm.NewMockClient("code_generation").WithStreams(llm.StreamScript{Fragments: []string{"x"}})
	wf, _ := newTestWorkflow(t, mock)

	_, _, err := drainOutput(wf.Generate(context.Background(), Request{
		Prompt:    "copy this",
		Image:     jpeg,
		Framework: FrameworkVue,
	}))
	require.NoError(t, err)

	assert.Contains(t, mock.LastCall().Messages[0].Content, "Image provided: true")
	gen := mock.LastStreamCall()
	require.NotNil(t, gen)
	assert.Contains(t, gen.SystemPrompt, "Framework: **VUE**")
	parts := gen.Messages[len(gen.Messages)-1].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, llm.PartImage, parts[1].Type)
	assert.Equal(t, "image/png", parts[1].MIMEType)
	assert.Equal(t, jpeg, parts[1].Data)
}

func TestGenerate_Idempotent(t *testing.T) {
	run := func() string {
		mock := llm.NewMockClient("code_generation").WithStreams(
			llm.StreamScript{OpenErr: errors.New("rate limit")},
			llm.StreamScript{Fragments: []string{"<a>", "b", "</a>"}},
		)
		wf, _ := newTestWorkflow(t, mock)
		out, _, err := drainOutput(wf.Generate(context.Background(), Request{
			Prompt:    "link",
			Framework: FrameworkHTML,
			History:   []Turn{{Role: llm.RoleUser, Content: "prev"}},
		}))
		require.NoError(t, err)
		return out
	}
	first := run()
	assert.Equal(t, "CODE:<a>b</a>", first)
	assert.Equal(t, first, run())
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	mock := llm.NewMockClient("code_generation").WithStreams(llm.StreamScript{OpenErr: errors.New("timeout")})
	ctx, cancel := context.WithCancel(context.Background())

	blocking := func(ctx context.Context, _ time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}
	wf, err := New(mock, WithSleeper(blocking))
	require.NoError(t, err)

	out, _, err := drainOutput(wf.Generate(ctx, Request{Prompt: "make a card"}))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, MarkerError), out)
	assert.Equal(t, 1, mock.StreamCallCount(), "no attempt after cancellation")
}

func TestGenerate_ConsumerStopReleasesProvider(t *testing.T) {
	client := &endlessClient{released: make(chan struct{})}
	wf, _ := newTestWorkflow(t, client)

	var got []string
	for chunk, err := range wf.Generate(context.Background(), Request{Prompt: "make a card"}) {
		require.NoError(t, err)
		got = append(got, chunk)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []string{MarkerCode, "tok", "tok"}, got)

	select {
	case <-client.released:
	case <-time.After(time.Second):
		t.Fatal("provider stream still open after consumer stopped")
	}
}

func TestSteps_EventOrder(t *testing.T) {
	mock := llm.NewMockClient("code_generation").WithStreams(
		llm.StreamScript{OpenErr: errors.New("overloaded")},
		llm.StreamScript{Fragments: []string{"x"}},
	)
	wf, _ := newTestWorkflow(t, mock)

	var order []string
	for step, err := range wf.Steps(context.Background(), Request{Prompt: "p"}) {
		require.NoError(t, err)
		order = append(order, step.NodeID)
		if step.State.CodeOutput != nil {
			step.State.CodeOutput.Close()
		}
	}
	assert.Equal(t, []string{
		string(StageClassifyIntent),
		string(StagePrepareCodePrompt),
		string(StageGenerateCode),
		string(StageGenerateCode),
		flowgraph.END,
	}, order)
}

// endlessClient classifies everything as code and streams forever.
type endlessClient struct {
	released chan struct{}
}

func (c *endlessClient) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: "code_generation"}, nil
}

func (c *endlessClient) Stream(ctx context.Context, _ llm.CompletionRequest) iter.Seq2[llm.StreamChunk, error] {
	return func(yield func(llm.StreamChunk, error) bool) {
		defer close(c.released)
		for ctx.Err() == nil {
			if !yield(llm.StreamChunk{Content: "tok"}, nil) {
				return
			}
		}
	}
}
