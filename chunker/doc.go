// Package chunker splits documents into overlapping token windows.
//
// Windows are measured in tokens of the model tokenizer rather than in
// characters, so every chunk fits the embedding model's context. Each chunk
// carries its document's metadata and is prefixed with the publication date
// so that the date takes part in similarity search.
package chunker
