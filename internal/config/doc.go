// Package config loads, normalizes, and validates reel configuration data.
//
// It supplies repository defaults (including the stock FFmpeg/ImageMagick
// encoders and their profiles), expands user paths, reads TOML files, and
// describes the three storage roles (local, remote, CDN) plus the task queue
// backend. The Config type centralizes every knob the worker and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
