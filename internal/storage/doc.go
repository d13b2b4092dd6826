// Package storage implements the storage capability used by the pipeline.
//
// A Backend saves, opens, addresses, deletes and probes named objects. Three
// roles are configured: Local holds uploads and encoded artifacts on the
// worker's disk, Remote is the location encoders read inputs from, and CDN
// is the externally addressable tier for finished outputs. Each role can be a
// directory, an S3 bucket or a MinIO bucket. Queued moves objects between two
// backends asynchronously and is awaited by the transfer step.
package storage
