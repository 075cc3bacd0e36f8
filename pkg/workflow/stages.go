package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/observability"
)

// Stage identifies a graph node.
type Stage string

const (
	StageClassifyIntent    Stage = "classify_intent"
	StageChat              Stage = "chat"
	StagePrepareCodePrompt Stage = "prepare_code_prompt"
	StageGenerateCode      Stage = "generate_code"

	// End is the terminal marker. It is not a stage.
	End Stage = flowgraph.END
)

// Stages lists every stage in graph order.
var Stages = []Stage{StageClassifyIntent, StageChat, StagePrepareCodePrompt, StageGenerateCode}

var errUnrecognizedIntent = errors.New("classifier reply names no known intent")

// Classification is the classifier outcome before fail-open defaulting.
type Classification struct {
	Intent Intent
	Err    error
}

// Resolve collapses a failed classification to IntentChat.
func (c Classification) Resolve() Intent {
	if c.Err != nil || c.Intent == "" {
		return IntentChat
	}
	return c.Intent
}

// parseIntent interprets classifier text by substring, code_generation first.
func parseIntent(reply string) Classification {
	raw := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case strings.Contains(raw, string(IntentCodeGeneration)):
		return Classification{Intent: IntentCodeGeneration}
	case strings.Contains(raw, string(IntentChat)):
		return Classification{Intent: IntentChat}
	default:
		return Classification{Err: fmt.Errorf("%w: %q", errUnrecognizedIntent, reply)}
	}
}

func (w *Workflow) classify(ctx flowgraph.Context, s State) Classification {
	client := ctx.LLM()
	if client == nil {
		return Classification{Err: ErrNoClient}
	}
	resp, err := client.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: classifierPrompt(s.Prompt, s.HasImage())}},
		Model:       w.cfg.Model,
		Temperature: w.cfg.ClassifierTemperature,
	})
	if err != nil {
		return Classification{Err: err}
	}
	return parseIntent(resp.Content)
}

func (w *Workflow) classifyIntent(ctx flowgraph.Context, s State) (State, error) {
	result := w.classify(ctx, s)
	if result.Err != nil {
		ctx.Logger().Warn("intent classification failed, defaulting to chat",
			slog.String("error", result.Err.Error()))
	}
	s.Intent = result.Resolve()
	ctx.Logger().Info("intent classified", slog.String("intent", string(s.Intent)))
	return s, nil
}

func (w *Workflow) chat(ctx flowgraph.Context, s State) (State, error) {
	msgs := append(historyMessages(s.History), llm.Message{Role: llm.RoleUser, Content: s.Prompt})
	stream, err := w.open(ctx, llm.CompletionRequest{
		Messages:    msgs,
		Model:       w.cfg.Model,
		Temperature: w.cfg.ChatTemperature,
	})
	if err != nil {
		ctx.Logger().Error("chat generation failed", slog.String("error", err.Error()))
		s.ErrorMessage = err.Error()
		s.Err = err
		return s, nil
	}
	s.ChatOutput = stream
	return s, nil
}

// prepareCodePrompt builds the multimodal user turn. Images are always sent
// as PNG whatever their original format.
func (w *Workflow) prepareCodePrompt(ctx flowgraph.Context, s State) (State, error) {
	ctx.Logger().Info("preparing code prompt", slog.String("framework", string(s.Framework)))
	parts := []llm.Part{llm.TextPart(s.Prompt)}
	if s.HasImage() {
		parts = append(parts, llm.ImagePart("image/png", s.Image))
	}
	s.ModelInputParts = parts
	return s, nil
}

// generateCode opens the code stream. Entered with ErrorMessage set, it is a
// retry: it first waits out the backoff for the current RetryCount and then
// counts the retry. Cancellation during the wait ends the run.
func (w *Workflow) generateCode(ctx flowgraph.Context, s State) (State, error) {
	if s.ErrorMessage != "" {
		delay := w.cfg.Retry.Delay(s.RetryCount)
		observability.LogRetryScheduled(ctx.Logger(), s.RetryCount+1, w.cfg.Retry.MaxRetries, delay, s.ErrorMessage)
		if err := w.cfg.Retry.Wait(ctx, delay); err != nil {
			return s, err
		}
		s.RetryCount++
	}
	ctx.Logger().Info("generating code", slog.Int("attempt", s.RetryCount+1))

	msgs := append(historyMessages(s.History), llm.Message{Role: llm.RoleUser, Parts: s.ModelInputParts})
	stream, err := w.open(ctx, llm.CompletionRequest{
		SystemPrompt: s.SystemInstruction,
		Messages:     msgs,
		Model:        w.cfg.Model,
		Temperature:  w.cfg.CodeTemperature,
	})
	if err != nil {
		ctx.Logger().Error("code generation failed", slog.String("error", err.Error()))
		s.CodeOutput = nil
		s.ErrorMessage = err.Error()
		s.Err = err
		return s, nil
	}
	s.CodeOutput = stream
	s.ErrorMessage = ""
	s.Err = nil
	return s, nil
}

func (w *Workflow) open(ctx flowgraph.Context, req llm.CompletionRequest) (*llm.Stream, error) {
	client := ctx.LLM()
	if client == nil {
		return nil, ErrNoClient
	}
	return llm.Open(ctx, client, req)
}
