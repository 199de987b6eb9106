// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder,
// ai.AnswerGenerator, and ai.AIProvider for use in unit tests. The mocks
// allow tests to run without external AI service dependencies and record
// their calls for assertions.
//
// # Usage in Tests
//
//	provider := mock.NewMockProviderWithServices(
//	    mock.NewMockEmbedderWithDimension(8),
//	    mock.NewMockGenerator(),
//	)
//
//	gen := provider.GetMockGenerator()
//	gen.Answer = "X is a letter."
//
//	// ... exercise code under test ...
//
//	assert.Equal(t, 1, gen.CallCount())
//	assert.Equal(t, "What is X?", gen.Calls()[0].Question)
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockGenerator: Returns Answer, or the first words of the context
//   - MockProvider: Aggregates mock embedder and generator
package mock
