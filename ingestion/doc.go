// Package ingestion loads a directory of source documents into a vector
// index.
//
// An Ingester discovers PDF reports and JSON records in a directory, parses
// and chunks them on a worker pool, drops chunks whose content hash is
// already indexed, embeds the rest and upserts them in one batch. A source
// that fails to parse is reported and skipped; only a failed upsert aborts
// the run.
//
// Basic usage:
//
//	ing, err := ingestion.NewIngester(index, embedder)
//	if err != nil {
//	    return err
//	}
//	defer ing.Release()
//
//	report, err := ing.Ingest(ctx, "./data")
package ingestion
