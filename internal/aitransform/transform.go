// Package aitransform rewrites a note body through a text generation
// provider before it is pushed. Edited spans are marked relative to the
// last synced body so the provider can leave untouched text alone.
package aitransform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrEmptyResponse is returned when a provider answers with no usable text.
var ErrEmptyResponse = errors.New("aitransform: empty response")

// Prompt is a single request to a provider.
type Prompt struct {
	System string
	User   string
}

// Provider generates text for a prompt.
type Provider interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

const instructions = `You restructure short personal notes.
Text between [EDITED] and [/EDITED] was changed since the last sync.
Rules:
- Wrap every command-like line (shell commands, code, invocations) in a fenced code block and put a one-line description above it.
- Collect free-form remarks under a final "## Notes" heading as bullet items.
- Keep all other content as written. Do not summarize or drop information.
- Use only headings (#, ##, ###), paragraphs, "- " bullets, fenced code blocks and "---" rules.
- Return only the rewritten note without the [EDITED] markers.`

// Service transforms bodies with a Provider.
type Service struct {
	provider Provider
	logger   *slog.Logger
}

// NewService returns a Service that calls p.
func NewService(p Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: p, logger: logger}
}

// Transform rewrites next, marking what changed since prev. Identical
// bodies are returned unchanged without calling the provider.
func (s *Service) Transform(ctx context.Context, prev, next string) (string, error) {
	if prev == next {
		return next, nil
	}
	out, err := s.provider.Complete(ctx, Prompt{
		System: instructions,
		User:   MarkEdits(prev, next),
	})
	if err != nil {
		return "", fmt.Errorf("aitransform: complete: %w", err)
	}
	out = strings.TrimSpace(unfence(StripMarkers(out)))
	if out == "" {
		return "", ErrEmptyResponse
	}
	s.logger.Debug("aitransform: transformed body",
		slog.Int("in_len", len(next)),
		slog.Int("out_len", len(out)),
	)
	return out, nil
}

// unfence drops a single ```markdown fence wrapped around the whole reply.
func unfence(s string) string {
	t := strings.TrimSpace(s)
	for _, tag := range []string{"```markdown\n", "```md\n"} {
		if strings.HasPrefix(t, tag) && strings.HasSuffix(t, "\n```") {
			return t[len(tag) : len(t)-len("\n```")]
		}
	}
	return s
}

// Passthrough returns bodies unchanged. It is used when AI is disabled.
type Passthrough struct{}

func (Passthrough) Transform(_ context.Context, _, next string) (string, error) {
	return next, nil
}
