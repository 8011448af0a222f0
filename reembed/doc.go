// Package reembed recomputes the vectors of every chunk in a collection,
// typically after switching embedding models.
//
// Chunk text and metadata are left untouched. Batches are embedded with
// retry and exponential backoff, and vectors are normalized before they are
// written back so that cosine similarity search keeps working.
package reembed
