// Package llm defines the generation client contract used by workflow stages,
// plus a primed fragment stream and a deterministic mock.
//
// Providers live in subpackages: llm/openai (OpenAI and Gemini's
// OpenAI-compatible endpoint) and llm/anthropic.
package llm

import (
	"context"
	"iter"
)

// Client is a text generation backend.
type Client interface {
	// Complete performs one synchronous call and returns the full reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream returns a lazy sequence of reply fragments. Nothing is sent
	// until the sequence is iterated. Connection and mid-stream failures are
	// yielded as errors; iteration stops after the first error.
	// Breaking out of the loop releases the underlying connection.
	Stream(ctx context.Context, req CompletionRequest) iter.Seq2[StreamChunk, error]
}
