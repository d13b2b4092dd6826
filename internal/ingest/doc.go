// Package ingest stages programmatic uploads, such as base64 data URIs, in a
// temporary file and submits them through the regular media lifecycle.
package ingest
