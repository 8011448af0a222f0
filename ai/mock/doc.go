// Package mock provides test double implementations of AI service interfaces.
//
// The mocks let tests run without a model endpoint and keep behavior
// deterministic.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	gen := mock.NewMockGenerator()
//	gen.Response = "Fees are listed on page 4."
//	for token, err := range gen.Stream(ctx, messages) { ... }
//
// # Default Behavior
//
//   - MockEmbedder: unit-length bag-of-words vectors, so texts sharing words are similar
//   - MockGenerator: answers with Response, streamed one word at a time
//   - MockProvider: aggregates mock embedder and generator
package mock
