// Package llm holds the language-model clients used to generate summaries and
// vote suggestions.
package llm

import (
	"context"
	"fmt"
)

// Generator produces text for a system-level directive applied to content.
type Generator interface {
	Generate(ctx context.Context, directive, content string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, directive, content string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, directive, content string) (string, error) {
	return f(ctx, directive, content)
}

// GenerationError wraps any failure of the upstream model call.
type GenerationError struct {
	Provider string
	Status   int
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s generation failed (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
