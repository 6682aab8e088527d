package llm

import "context"

// MockCodeGenerator is a configurable mock for testing generation flows.
// Set the function fields to control behavior in tests.
type MockCodeGenerator struct {
	// GenerateCodeFunc is called when GenerateCode is invoked.
	// If nil, returns empty result and nil error.
	GenerateCodeFunc func(ctx context.Context, systemMessage, prompt string) (string, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// GenerateCodeCalls counts invocations for verification.
	GenerateCodeCalls int
}

func NewMockCodeGenerator() *MockCodeGenerator {
	return &MockCodeGenerator{ModelName: "mock-model"}
}

func (m *MockCodeGenerator) GenerateCode(ctx context.Context, systemMessage, prompt string) (string, error) {
	m.GenerateCodeCalls++
	if m.GenerateCodeFunc != nil {
		return m.GenerateCodeFunc(ctx, systemMessage, prompt)
	}
	return "", nil
}

func (m *MockCodeGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// MockGeneratorFactory returns a fixed generator from ForModel.
type MockGeneratorFactory struct {
	Generator CodeGenerator
	Err       error

	// LastModel records the most recent ForModel argument.
	LastModel string
}

func (m *MockGeneratorFactory) ForModel(model string) (CodeGenerator, error) {
	m.LastModel = model
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Generator, nil
}
