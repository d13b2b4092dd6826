// Command reel submits media for transcoding, runs the encode workers and
// inspects the catalog and media state.
package main
