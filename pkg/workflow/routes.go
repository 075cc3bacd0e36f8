package workflow

import (
	"log/slog"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph"
	fgerrors "github.com/randalmurphal/codecanvas/pkg/flowgraph/errors"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/observability"
)

// routeByIntent sends code requests to prompt preparation and everything
// else to chat.
func routeByIntent(_ flowgraph.Context, s State) string {
	if s.Intent == IntentCodeGeneration {
		return string(StagePrepareCodePrompt)
	}
	return string(StageChat)
}

// handleError decides retry-or-terminate after generate_code. It only
// decides; the wait and the RetryCount increment happen when generate_code
// is re-entered.
func (w *Workflow) handleError(ctx flowgraph.Context, s State) string {
	if s.ErrorMessage == "" {
		return string(End)
	}
	decision := w.cfg.Retry.Decide(s.ErrorCategory(), s.RetryCount)
	w.metrics.RecordRetry(ctx, string(StageGenerateCode), decision.Retry)
	if decision.Retry {
		ctx.Logger().Debug("retry decided", slog.Duration("delay", decision.Delay))
		return string(StageGenerateCode)
	}
	observability.LogRetryExhausted(ctx.Logger(), s.RetryCount, decision.Category == fgerrors.CategoryTransient, s.ErrorMessage)
	return string(End)
}
