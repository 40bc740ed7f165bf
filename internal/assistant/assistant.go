// Package assistant answers prompts and explains terminal executions with a
// generative model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/devdeck/pkg/models"
)

// ErrUpstreamUnavailable is returned when no model is configured, the
// circuit is open or the model call failed.
var ErrUpstreamUnavailable = errors.New("ai upstream unavailable")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant validates requests and maps generator failures to
// ErrUpstreamUnavailable.
type Assistant struct {
	gen Generator
}

// New creates an assistant. A nil generator makes every call fail with
// ErrUpstreamUnavailable.
func New(gen Generator) *Assistant {
	return &Assistant{gen: gen}
}

// Available reports whether a generator is configured.
func (a *Assistant) Available() bool {
	return a.gen != nil
}

// Generate answers a free-form prompt.
func (a *Assistant) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", models.ErrValidation)
	}
	if a.gen == nil {
		return "", fmt.Errorf("%w: no model configured", ErrUpstreamUnavailable)
	}

	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("AI generation failed")
		if errors.Is(err, ErrUpstreamUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return text, nil
}

// ExplainExecution explains the execution at index in the session history.
// A nil index selects the most recent execution.
func (a *Assistant) ExplainExecution(ctx context.Context, session *models.TerminalSession, index *int) (string, error) {
	if len(session.History) == 0 {
		return "", fmt.Errorf("%w: session has no executions", models.ErrValidation)
	}

	i := len(session.History) - 1
	if index != nil {
		i = *index
	}
	if i < 0 || i >= len(session.History) {
		return "", fmt.Errorf("%w: execution index %d out of range", models.ErrValidation, i)
	}

	return a.Generate(ctx, BuildExplainPrompt(session.Name, session.History[i]))
}
