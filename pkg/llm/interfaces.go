// Package llm provides the model clients used for transformation code
// generation.
package llm

import "context"

// CodeGenerator produces transformation programs from natural language.
// Use this interface for dependency injection to enable mocking in tests.
type CodeGenerator interface {
	// GenerateCode sends a generation request and returns the raw model
	// output, which may still carry markdown fences or prose.
	GenerateCode(ctx context.Context, systemMessage, prompt string) (string, error)

	// Model returns the model name this client talks to.
	Model() string
}
