// Package store persists the transcoding catalog and media entities in SQLite.
//
// Writers open transactions with an immediate lock so concurrent store tasks
// appending outputs to one media entity serialize on the database. AddOutput
// re-reads profile and output counts inside that transaction before applying
// the completion transition, which keeps encoded and ready in step.
//
// Lookups return (nil, nil) when a row does not exist; callers translate that
// into their own not-found errors.
package store
