// Package ingestion loads documents into a vector store index.
//
// The Pipeline type runs the setup workflow:
//   - Ensuring the target index exists, creating it with the cosine metric
//   - Splitting each document into chunks
//   - Embedding the chunks of each document in one request
//   - Upserting the resulting records in fixed-size batches
//
// Processing is sequential. Each remote call completes before the next one
// starts, and the first failure aborts the run. Batches flushed before a
// failure stay in the index.
package ingestion
